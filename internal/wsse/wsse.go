// Package wsse builds the X-WSSE UsernameToken header used to authenticate
// against the Emarsys API.
package wsse

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// HeaderName is the request header carrying the signature.
const HeaderName = "X-WSSE"

// CreatedLayout is ISO-8601 with a basic (colon-less) UTC offset, e.g.
// 2026-10-14T10:30:00+0000. The server recomputes the digest from this exact
// string, so the layout is part of the wire contract.
const CreatedLayout = "2006-01-02T15:04:05-0700"

// Token holds the parts of a single signature.
type Token struct {
	Username string
	Digest   string
	Nonce    string
	Created  string
}

// String renders the header value.
func (t Token) String() string {
	return fmt.Sprintf(`UsernameToken Username="%s", PasswordDigest="%s", Nonce="%s", Created="%s"`,
		t.Username, t.Digest, t.Nonce, t.Created)
}

// NewToken computes the token for username/secret at now.
func NewToken(username, secret string, now time.Time) Token {
	created := now.Format(CreatedLayout)
	nonce := Nonce(now)
	return Token{
		Username: username,
		Digest:   Digest(nonce, created, secret),
		Nonce:    nonce,
		Created:  created,
	}
}

// Signature returns the X-WSSE header value for username/secret at now.
func Signature(username, secret string, now time.Time) string {
	return NewToken(username, secret, now).String()
}

// Nonce is the hex MD5 of the decimal Unix timestamp of NextFriday(now).
func Nonce(now time.Time) string {
	sum := md5.Sum([]byte(strconv.FormatInt(NextFriday(now).Unix(), 10)))
	return hex.EncodeToString(sum[:])
}

// Digest is base64(hex(sha1(nonce + created + secret))).
func Digest(nonce, created, secret string) string {
	sum := sha1.Sum([]byte(nonce + created + secret))
	return base64.StdEncoding.EncodeToString([]byte(hex.EncodeToString(sum[:])))
}

// NextFriday returns midnight of the first Friday strictly after t's calendar
// day, in t's location. Called on a Friday it returns the following week's.
func NextFriday(t time.Time) time.Time {
	days := (int(time.Friday) - int(t.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	y, m, d := t.Date()
	return time.Date(y, m, d+days, 0, 0, 0, 0, t.Location())
}
