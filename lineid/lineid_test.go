package lineid

import (
	"testing"
	"time"

	"github.com/collabtext/pageroom/model"
)

func TestNewEmbedsTimestampAndUserSuffix(t *testing.T) {
	restore := nowUnix
	nowUnix = func() int64 { return 1700000000 }
	defer func() { nowUnix = restore }()

	id := New("user-abcdef")
	if len(id) != 24 {
		t.Fatalf("expected 24 hex chars, got %d (%s)", len(id), id)
	}

	unix, err := TimeOf(id)
	if err != nil {
		t.Fatalf("TimeOf: %v", err)
	}
	if unix != 1700000000 {
		t.Fatalf("expected embedded timestamp 1700000000, got %d", unix)
	}

	suffix := string(id)[8:14]
	if suffix != "abcdef" {
		t.Fatalf("expected user suffix abcdef, got %s", suffix)
	}
}

func TestNewPadsShortUserId(t *testing.T) {
	id := New("42")
	suffix := string(id)[8:14]
	if suffix != "000042" {
		t.Fatalf("expected zero-padded suffix 000042, got %s", suffix)
	}
}

func TestTimeOfWithinWallClock(t *testing.T) {
	before := time.Now().Unix()
	id := New("someuser")
	after := time.Now().Unix()

	unix, err := TimeOf(id)
	if err != nil {
		t.Fatalf("TimeOf: %v", err)
	}
	if unix < before-1 || unix > after+1 {
		t.Fatalf("timestamp %d not within wall clock window [%d,%d]", unix, before, after)
	}
}

func TestUpdatedAtResolve(t *testing.T) {
	if v, err := AtUnix(123).Resolve(); err != nil || v != 123 {
		t.Fatalf("AtUnix: got (%d, %v)", v, err)
	}

	id := newAt(555, "u")
	if v, err := FromId(id).Resolve(); err != nil || v != 555 {
		t.Fatalf("FromId: got (%d, %v)", v, err)
	}

	commit := model.CommitId(newAt(777, "u"))
	if v, err := FromCommit(commit).Resolve(); err != nil || v != 777 {
		t.Fatalf("FromCommit: got (%d, %v)", v, err)
	}

	restore := nowUnix
	nowUnix = func() int64 { return 999 }
	defer func() { nowUnix = restore }()
	if v, err := (UpdatedAt{}).Resolve(); err != nil || v != 999 {
		t.Fatalf("zero-value UpdatedAt should default to now: got (%d, %v)", v, err)
	}
}

func TestTimeOfRejectsShortId(t *testing.T) {
	if _, err := TimeOf("abc"); err == nil {
		t.Fatal("expected error for short id")
	}
}
