package wire

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/rivulet/chat/server/store/types"
)

func TestPrimitiveRoundTrips(t *testing.T) {
	var buf bytes.Buffer

	if err := WriteUint32(&buf, 0xdeadbeef); err != nil {
		t.Fatal(err)
	}
	if v, err := ReadUint32(&buf); err != nil || v != 0xdeadbeef {
		t.Fatalf("uint32 round trip: %v %v", v, err)
	}

	if err := WriteInt32(&buf, -2); err != nil {
		t.Fatal(err)
	}
	if v, err := ReadInt32(&buf); err != nil || v != -2 {
		t.Fatalf("int32 round trip: %v %v", v, err)
	}

	if err := WriteString(&buf, "héllo;world"); err != nil {
		t.Fatal(err)
	}
	if s, err := ReadString(&buf); err != nil || s != "héllo;world" {
		t.Fatalf("string round trip: %q %v", s, err)
	}

	uid := types.Uid(0x0123456789abcdef)
	if err := WriteUid(&buf, uid); err != nil {
		t.Fatal(err)
	}
	if got, err := ReadUid(&buf); err != nil || got != uid {
		t.Fatalf("uid round trip: %v %v", got, err)
	}

	ts := time.UnixMilli(1700000000123).UTC()
	if err := WriteTime(&buf, ts); err != nil {
		t.Fatal(err)
	}
	if got, err := ReadTime(&buf); err != nil || !got.Equal(ts) {
		t.Fatalf("time round trip: %v %v", got, err)
	}
}

func TestNullableMarker(t *testing.T) {
	var buf bytes.Buffer
	WriteNullable(&buf, true)
	WriteNullable(&buf, false)

	if present, err := ReadNullable(&buf); err != nil || !present {
		t.Fatalf("expected present marker, got %v %v", present, err)
	}
	if present, err := ReadNullable(&buf); err != nil || present {
		t.Fatalf("expected absent marker, got %v %v", present, err)
	}

	buf.WriteByte(7)
	if _, err := ReadNullable(&buf); !errors.Is(err, types.ErrMalformed) {
		t.Fatalf("bad marker should be ErrMalformed, got %v", err)
	}
}

func TestTruncatedInputIsMalformed(t *testing.T) {
	if _, err := ReadUint32(bytes.NewReader([]byte{1, 2})); !errors.Is(err, types.ErrMalformed) {
		t.Errorf("truncated uint32: got %v", err)
	}
	if _, err := ReadUid(bytes.NewReader([]byte{1})); !errors.Is(err, types.ErrMalformed) {
		t.Errorf("truncated uid: got %v", err)
	}

	// Length prefix promising more bytes than arrive.
	var buf bytes.Buffer
	WriteUint32(&buf, 10)
	buf.WriteString("abc")
	if _, err := ReadString(&buf); !errors.Is(err, types.ErrMalformed) {
		t.Errorf("truncated string: got %v", err)
	}
}

func TestOversizedLengthRejected(t *testing.T) {
	var buf bytes.Buffer
	WriteUint32(&buf, 1<<25)
	if _, err := ReadString(&buf); !errors.Is(err, types.ErrMalformed) {
		t.Errorf("oversized string length: got %v", err)
	}

	buf.Reset()
	WriteUint32(&buf, 1<<20)
	if _, err := ReadUidList(&buf); !errors.Is(err, types.ErrMalformed) {
		t.Errorf("oversized list length: got %v", err)
	}
}

func TestListRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	ids := []types.Uid{1, 2, 3}
	if err := WriteUidList(&buf, ids); err != nil {
		t.Fatal(err)
	}
	got, err := ReadUidList(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(ids, got); diff != "" {
		t.Errorf("uid list mismatch (-want +got):\n%s", diff)
	}

	ss := []string{"a", "", "c"}
	if err := WriteStringList(&buf, ss); err != nil {
		t.Fatal(err)
	}
	gotSS, err := ReadStringList(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(ss, gotSS); diff != "" {
		t.Errorf("string list mismatch (-want +got):\n%s", diff)
	}
}

func TestUserRoundTrip(t *testing.T) {
	u := types.NewUser(42, "alice", time.UnixMilli(1700000000000).UTC())
	var buf bytes.Buffer
	if err := WriteUser(&buf, u); err != nil {
		t.Fatal(err)
	}
	got, err := ReadUser(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(u, got); diff != "" {
		t.Errorf("user mismatch (-want +got):\n%s", diff)
	}
}

func TestConversationHeaderRoundTrip(t *testing.T) {
	ch := types.NewConversationHeader(7, 42, time.UnixMilli(1700000000000).UTC(), "general")
	ch.Role[43] = types.LevelMember
	ch.Role[44] = types.LevelOwner

	var buf bytes.Buffer
	if err := WriteConversationHeader(&buf, ch); err != nil {
		t.Fatal(err)
	}
	got, err := ReadConversationHeader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(ch, got); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}
}

func TestConversationPayloadRoundTrip(t *testing.T) {
	cp := &types.ConversationPayload{ID: 7, FirstMessage: 100, LastMessage: 102}
	var buf bytes.Buffer
	if err := WriteConversationPayload(&buf, cp); err != nil {
		t.Fatal(err)
	}
	got, err := ReadConversationPayload(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(cp, got); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestMessageRoundTrip(t *testing.T) {
	m := &types.Message{
		ID:           100,
		Author:       42,
		Conversation: 7,
		CreatedAt:    time.UnixMilli(1700000000456).UTC(),
		Content:      "hello there",
		Next:         101,
	}
	var buf bytes.Buffer
	if err := WriteMessage(&buf, m); err != nil {
		t.Fatal(err)
	}
	got, err := ReadMessage(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(m, got); diff != "" {
		t.Errorf("message mismatch (-want +got):\n%s", diff)
	}
}

func TestStatusMapping(t *testing.T) {
	outcomes := []error{
		nil,
		types.ErrNotFound,
		types.ErrAlreadyCurrentSetting,
		types.ErrInsufficientPermission,
		types.ErrSelfChange,
		types.ErrNotInterested,
		types.ErrIdInUse,
	}
	for _, want := range outcomes {
		got := StatusError(StatusOf(want))
		if want == nil {
			if got != nil {
				t.Errorf("StatusOf(nil) should map back to nil, got %v", got)
			}
			continue
		}
		if !errors.Is(got, want) {
			t.Errorf("outcome %v mapped back to %v", want, got)
		}
	}

	// Wrapped outcomes map the same as bare ones.
	wrapped := StatusOf(errors.Join(types.ErrNotFound))
	if wrapped != StatusNotFound {
		t.Errorf("wrapped ErrNotFound mapped to status %d", wrapped)
	}
}
