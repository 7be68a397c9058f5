package stream

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/collabtext/pageroom/metadata"
	"github.com/collabtext/pageroom/transport/transporttest"
)

type fakeFetcher struct{ projectId string }

func (f fakeFetcher) GetPage(ctx context.Context, project, title string) (metadata.PageInfo, error) {
	return metadata.PageInfo{}, nil
}
func (f fakeFetcher) GetProjectId(ctx context.Context, project string) (string, error) {
	return f.projectId, nil
}
func (f fakeFetcher) GetUserId(ctx context.Context) (string, error) { return "u", nil }

func TestListenSubscribesToDefaultChannelsAndYieldsEvents(t *testing.T) {
	fake := transporttest.New()

	var joinData json.RawMessage
	fake.OnRequest("room:join", func(data json.RawMessage) (any, error) {
		joinData = data
		return nil, nil
	})

	ctx := context.Background()
	s, err := Listen(ctx, fake, fakeFetcher{projectId: "proj-1"}, "myproject")
	require.NoError(t, err)
	defer s.Close()

	var decoded struct {
		ProjectId            string `json:"projectId"`
		ProjectUpdatesStream bool   `json:"projectUpdatesStream"`
	}
	require.NoError(t, json.Unmarshal(joinData, &decoded))
	require.Equal(t, "proj-1", decoded.ProjectId)
	require.True(t, decoded.ProjectUpdatesStream)

	require.NoError(t, fake.Emit("projectUpdatesStream:commit", map[string]string{"id": "c1"}))

	ctx2, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	payload, ok := s.Next(ctx2)
	require.True(t, ok)
	require.Contains(t, string(payload), "c1")
}

func TestCloseDisconnectsAndStopsDelivery(t *testing.T) {
	fake := transporttest.New()
	fake.OnRequest("room:join", func(data json.RawMessage) (any, error) { return nil, nil })

	s, err := Listen(context.Background(), fake, fakeFetcher{projectId: "p"}, "proj", "custom:event")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, ok := s.Next(ctx)
	require.False(t, ok)
}
