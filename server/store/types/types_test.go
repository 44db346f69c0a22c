package types

import (
	"encoding/json"
	"testing"
	"time"
)

func TestUidZero(t *testing.T) {
	var uid Uid
	if !uid.IsZero() {
		t.Error("zero value should be the null sentinel")
	}
	if uid.String() != "" {
		t.Errorf("zero uid text form should be empty, got %q", uid.String())
	}
	if Uid(1).IsZero() {
		t.Error("non-zero uid reported as zero")
	}
}

func TestUidCompare(t *testing.T) {
	small, big := Uid(100), Uid(200)
	if small.Compare(big) != -1 {
		t.Error("expected small < big")
	}
	if big.Compare(small) != 1 {
		t.Error("expected big > small")
	}
	if small.Compare(small) != 0 {
		t.Error("expected equal ids to compare 0")
	}
}

func TestUidTextRoundTrip(t *testing.T) {
	for _, uid := range []Uid{1, 0xdeadbeef, 0xffffffffffffffff} {
		text, err := uid.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%d): %v", uid, err)
		}
		var back Uid
		if err := back.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%q): %v", text, err)
		}
		if back != uid {
			t.Errorf("round trip of %d produced %d", uid, back)
		}
		if ParseUid(string(text)) != uid {
			t.Errorf("ParseUid(%q) != %d", text, uid)
		}
	}
}

func TestUidBinaryRoundTrip(t *testing.T) {
	uid := Uid(0x0123456789abcdef)
	b, err := uid.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	var back Uid
	if err := back.UnmarshalBinary(b); err != nil {
		t.Fatal(err)
	}
	if back != uid {
		t.Errorf("round trip produced %d, want %d", back, uid)
	}

	if err := back.UnmarshalBinary([]byte{1, 2, 3}); err == nil {
		t.Error("short input should fail")
	}
}

func TestUidJSONRoundTrip(t *testing.T) {
	uid := Uid(42)
	raw, err := json.Marshal(&uid)
	if err != nil {
		t.Fatal(err)
	}
	var back Uid
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatal(err)
	}
	if back != uid {
		t.Errorf("round trip produced %d, want %d", back, uid)
	}
}

func TestParseUidMalformed(t *testing.T) {
	if got := ParseUid("not-a-valid-id!"); got != ZeroUid {
		t.Errorf("malformed input should parse to ZeroUid, got %d", got)
	}
}

func TestNewConversationHeaderSeedsCreator(t *testing.T) {
	owner := Uid(7)
	ch := NewConversationHeader(Uid(1), owner, time.Now(), "general")
	if ch.Role[owner] != LevelCreator {
		t.Errorf("owner role = %d, want creator", ch.Role[owner])
	}
	if ch.MemberCount() != 1 {
		t.Errorf("member count = %d, want 1", ch.MemberCount())
	}
}

func TestNewUserEmptyInterests(t *testing.T) {
	u := NewUser(Uid(1), "alice", time.Now())
	if u.UserInterests == nil || u.ConvoInterests == nil || u.UserSeen == nil || u.ConvoSeen == nil {
		t.Error("interest state must be allocated")
	}
	if len(u.UserInterests)+len(u.ConvoInterests) != 0 {
		t.Error("interest sets must start empty")
	}
}
