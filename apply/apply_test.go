package apply

import (
	"testing"

	"github.com/collabtext/pageroom/lineid"
	"github.com/collabtext/pageroom/model"
	"github.com/collabtext/pageroom/pageerr"
)

func line(id, text string) model.Line {
	return model.Line{Id: model.LineId(id), Text: text, UserId: "u1", Created: 1, Updated: 1}
}

func TestApplyInsertAtEnd(t *testing.T) {
	lines := model.Lines{line("111111110000000000000000", "hello")}
	newId := lineid.New("user1")
	changes := model.Changes{model.NewInsert(model.EndAnchor, model.InsertPayload{Id: newId, Text: "world"})}

	out, err := Apply(lines, changes, Options{UserId: "user1"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(out) != 2 || out[1].Text != "world" || out[1].Id != newId {
		t.Fatalf("unexpected result: %+v", out)
	}
	wantUnix, _ := lineid.TimeOf(newId)
	if out[1].Created != wantUnix || out[1].Updated != wantUnix {
		t.Fatalf("expected created/updated %d, got %+v", wantUnix, out[1])
	}
}

func TestApplyInsertBeforeAnchor(t *testing.T) {
	lines := model.Lines{line("111111110000000000000000", "a"), line("222222220000000000000000", "c")}
	newId := lineid.New("u")
	changes := model.Changes{model.NewInsert("222222220000000000000000", model.InsertPayload{Id: newId, Text: "b"})}

	out, err := Apply(lines, changes, Options{UserId: "u"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	got := out.Texts()
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestApplyUpdateSetsUpdatedTimestamp(t *testing.T) {
	lines := model.Lines{line("111111110000000000000000", "old")}
	changes := model.Changes{model.NewUpdate("111111110000000000000000", "new")}

	out, err := Apply(lines, changes, Options{UserId: "u", Updated: lineid.AtUnix(5000)})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out[0].Text != "new" || out[0].Updated != 5000 || out[0].Created != 1 {
		t.Fatalf("unexpected result: %+v", out[0])
	}
}

func TestApplyDelete(t *testing.T) {
	lines := model.Lines{line("111111110000000000000000", "a"), line("222222220000000000000000", "b")}
	changes := model.Changes{model.NewDelete("222222220000000000000000")}
	out, err := Apply(lines, changes, Options{UserId: "u"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(out) != 1 || out[0].Text != "a" {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestApplyMissingAnchorFails(t *testing.T) {
	lines := model.Lines{line("111111110000000000000000", "a")}
	changes := model.Changes{model.NewDelete("does-not-exist")}
	_, err := Apply(lines, changes, Options{UserId: "u"})
	if !pageerr.Is(err, pageerr.MissingAnchor) {
		t.Fatalf("expected MissingAnchor error, got %v", err)
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	lines := model.Lines{line("111111110000000000000000", "a")}
	changes := model.Changes{model.NewUpdate("111111110000000000000000", "b")}
	_, err := Apply(lines, changes, Options{UserId: "u"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if lines[0].Text != "a" {
		t.Fatalf("input mutated: %+v", lines[0])
	}
}

func TestApplyBatchLeftToRight(t *testing.T) {
	lines := model.Lines{line("111111110000000000000000", "a")}
	newId := lineid.New("u")
	changes := model.Changes{
		model.NewInsert(model.EndAnchor, model.InsertPayload{Id: newId, Text: "b"}),
		model.NewUpdate(newId, "b2"),
	}
	out, err := Apply(lines, changes, Options{UserId: "u"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.Texts()[1] != "b2" {
		t.Fatalf("second op in batch didn't see first op's result: %v", out.Texts())
	}
}

func TestApplyMetadataOpsAreNoOps(t *testing.T) {
	lines := model.Lines{line("111111110000000000000000", "a")}
	changes := model.Changes{model.NewTitle("t"), model.NewDescriptions([]string{"x"}), model.NewDeletePage()}
	out, err := Apply(lines, changes, Options{UserId: "u"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(out) != 1 || out[0].Text != "a" {
		t.Fatalf("expected lines unchanged, got %+v", out)
	}
}
