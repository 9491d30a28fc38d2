package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/armtemiy/armlab/pkg/domain"
)

// DefaultMaxAge is how long signed launch parameters stay valid.
const DefaultMaxAge = 24 * time.Hour

var (
	ErrMissingHash = errors.New("init data: hash is missing")
	ErrBadHash     = errors.New("init data: signature mismatch")
	ErrExpired     = errors.New("init data: expired")
	ErrNoUser      = errors.New("init data: user is missing")
)

// LaunchParams is the validated content of initData.
type LaunchParams struct {
	User         *domain.User
	AuthDate     time.Time
	QueryID      string
	StartParam   string
	LanguageCode string
}

type initUser struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Username     string `json:"username"`
	LanguageCode string `json:"language_code"`
	PhotoURL     string `json:"photo_url"`
}

// Validator checks initData signatures for one bot token.
type Validator struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

// NewValidator derives the signing secret from the bot token.
// maxAge <= 0 disables the expiry check.
func NewValidator(botToken string, maxAge time.Duration) *Validator {
	mac := hmac.New(sha256.New, []byte("WebAppData"))
	mac.Write([]byte(botToken))
	return &Validator{
		secret: mac.Sum(nil),
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Validate verifies the hash and expiry of raw initData and extracts the user.
func (v *Validator) Validate(raw string) (*LaunchParams, error) {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, fmt.Errorf("init data: %w", err)
	}

	hash := values.Get("hash")
	if hash == "" {
		return nil, ErrMissingHash
	}
	if !hmac.Equal([]byte(v.sign(values)), []byte(strings.ToLower(hash))) {
		return nil, ErrBadHash
	}

	params := &LaunchParams{
		QueryID:    values.Get("query_id"),
		StartParam: values.Get("start_param"),
	}

	if s := values.Get("auth_date"); s != "" {
		sec, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("init data: bad auth_date %q", s)
		}
		params.AuthDate = time.Unix(sec, 0)
	}
	if v.maxAge > 0 && (params.AuthDate.IsZero() || v.now().Sub(params.AuthDate) > v.maxAge) {
		return nil, ErrExpired
	}

	rawUser := values.Get("user")
	if rawUser == "" {
		return nil, ErrNoUser
	}
	var u initUser
	if err := json.Unmarshal([]byte(rawUser), &u); err != nil {
		return nil, fmt.Errorf("init data: bad user: %w", err)
	}
	if u.ID == 0 {
		return nil, ErrNoUser
	}
	params.LanguageCode = u.LanguageCode
	params.User = &domain.User{
		ID:        strconv.FormatInt(u.ID, 10),
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		PhotoURL:  u.PhotoURL,
	}
	return params, nil
}

// Sign produces a hash for values, the way Telegram does. Used to build
// fixtures and local development launch parameters.
func (v *Validator) Sign(values url.Values) string {
	return v.sign(values)
}

func (v *Validator) sign(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k == "hash" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+values.Get(k))
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(mac.Sum(nil))
}
