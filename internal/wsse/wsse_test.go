package wsse

import (
	"strings"
	"testing"
	"time"
)

func TestNextFriday(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "midweek",
			now:  time.Date(2026, 10, 14, 10, 30, 0, 0, time.UTC),
			want: time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "on a friday jumps a week",
			now:  time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC),
			want: time.Date(2026, 10, 23, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "saturday",
			now:  time.Date(2026, 10, 17, 23, 59, 59, 0, time.UTC),
			want: time.Date(2026, 10, 23, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "thursday late evening",
			now:  time.Date(2026, 10, 15, 23, 59, 59, 0, time.UTC),
			want: time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "crosses month end",
			now:  time.Date(2026, 10, 31, 12, 0, 0, 0, time.UTC),
			want: time.Date(2026, 11, 6, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextFriday(tt.now)
			if !got.Equal(tt.want) {
				t.Errorf("NextFriday(%s) = %s, want %s", tt.now, got, tt.want)
			}
		})
	}
}

func TestNextFriday_KeepsLocation(t *testing.T) {
	loc := time.FixedZone("CEST", 2*60*60)
	now := time.Date(2026, 10, 14, 1, 0, 0, 0, loc)
	got := NextFriday(now)
	if got.Location() != loc {
		t.Fatalf("expected location %v, got %v", loc, got.Location())
	}
	if got.Hour() != 0 || got.Day() != 16 {
		t.Fatalf("expected 2026-10-16 00:00 local, got %s", got)
	}
}

func TestNonce(t *testing.T) {
	now := time.Date(2026, 10, 14, 10, 30, 0, 0, time.UTC)
	// md5("1792108800"), the Unix timestamp of 2026-10-16T00:00:00Z.
	if got := Nonce(now); got != "a98416fdf2d508eae6771dd2ea1316c7" {
		t.Errorf("Nonce() = %s", got)
	}
}

func TestSignature_KnownVector(t *testing.T) {
	now := time.Date(2026, 10, 14, 10, 30, 0, 0, time.UTC)
	got := Signature("api_user", "s3cr3t", now)
	want := `UsernameToken Username="api_user", ` +
		`PasswordDigest="YzMxY2VlZDA3MDU1NDZiZjc1YmJkNDYwYzM4OWY4ZDM1ZTBiNjFiMA==", ` +
		`Nonce="a98416fdf2d508eae6771dd2ea1316c7", ` +
		`Created="2026-10-14T10:30:00+0000"`
	if got != want {
		t.Errorf("Signature() =\n%s\nwant\n%s", got, want)
	}
}

func TestSignature_Deterministic(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	a := Signature("u", "secret", now)
	b := Signature("u", "secret", now)
	if a != b {
		t.Fatalf("expected identical signatures, got %q and %q", a, b)
	}
}

func TestSignature_ChangesWithTime(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	a := NewToken("u", "secret", now)
	b := NewToken("u", "secret", now.Add(time.Second))
	if a.Created == b.Created || a.Digest == b.Digest {
		t.Fatalf("expected created and digest to change, got %+v and %+v", a, b)
	}
	if a.Nonce != b.Nonce {
		t.Fatalf("nonce should be stable within the same week, got %s and %s", a.Nonce, b.Nonce)
	}

	// Crossing the Friday boundary moves the nonce too.
	c := NewToken("u", "secret", time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC))
	if c.Nonce == a.Nonce {
		t.Fatalf("expected nonce to change after the Friday boundary")
	}
}

func TestSignature_ChangesWithSecret(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	if Signature("u", "one", now) == Signature("u", "two", now) {
		t.Fatal("expected different secrets to produce different digests")
	}
}

func TestCreatedUsesOffset(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.FixedZone("", -5*60*60))
	tok := NewToken("u", "s", now)
	if tok.Created != "2026-03-02T09:00:00-0500" {
		t.Fatalf("Created = %s", tok.Created)
	}
	if !strings.Contains(tok.String(), `Created="2026-03-02T09:00:00-0500"`) {
		t.Fatalf("header missing created: %s", tok.String())
	}
}
