/*
Copyright 2025 The Flux authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package notifier

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/fluxcd/artifact-publisher/masktoken"
)

// ErrRejected is returned when the robot answers with a non-zero errcode.
var ErrRejected = errors.New("notification rejected")

// Sender delivers notification cards.
type Sender interface {
	Send(ctx context.Context, card ActionCard) error
}

// Options holds the settings of a DingTalk robot.
type Options struct {
	// Webhook is the robot endpoint, e.g. 'https://oapi.dingtalk.com/robot/send'.
	Webhook string
	// AccessToken is added as the access_token query parameter when set.
	AccessToken string
	// Secret enables request signing when set.
	Secret string
	// Retries is the number of retries on connection errors and 5xx responses.
	Retries int
	Timeout time.Duration
}

// DingTalk posts action cards to a DingTalk custom robot.
type DingTalk struct {
	webhook *url.URL
	token   string
	secret  string

	// Client is the retryable HTTP client used to post messages.
	Client *retryablehttp.Client

	now func() time.Time
}

// NewDingTalk returns a DingTalk sender for the given options.
func NewDingTalk(opts Options) (*DingTalk, error) {
	u, err := url.Parse(opts.Webhook)
	if err != nil {
		return nil, masktoken.MaskError(fmt.Errorf("invalid webhook: %w", err), opts.AccessToken)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid webhook: unsupported scheme %q", u.Scheme)
	}

	httpClient := retryablehttp.NewClient()
	httpClient.HTTPClient.Timeout = opts.Timeout
	httpClient.RetryMax = opts.Retries
	httpClient.CheckRetry = retryablehttp.ErrorPropagatedRetryPolicy
	httpClient.Logger = nil

	return &DingTalk{
		webhook: u,
		token:   opts.AccessToken,
		secret:  opts.Secret,
		Client:  httpClient,
		now:     time.Now,
	}, nil
}

type dingTalkButton struct {
	Title     string `json:"title"`
	ActionURL string `json:"actionURL"`
}

type dingTalkActionCard struct {
	Title          string           `json:"title"`
	Text           string           `json:"text"`
	HideAvatar     string           `json:"hideAvatar"`
	BtnOrientation string           `json:"btnOrientation"`
	Buttons        []dingTalkButton `json:"btns"`
}

type dingTalkMessage struct {
	MsgType    string             `json:"msgtype"`
	ActionCard dingTalkActionCard `json:"actionCard"`
}

type dingTalkResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// Send posts the card to the robot.
func (d *DingTalk) Send(ctx context.Context, card ActionCard) error {
	msg := dingTalkMessage{
		MsgType: "actionCard",
		ActionCard: dingTalkActionCard{
			Title:          card.Title,
			Text:           card.Text,
			HideAvatar:     flag(card.HideAvatar),
			BtnOrientation: flag(card.BtnOrientation),
		},
	}
	for _, b := range card.Buttons {
		msg.ActionCard.Buttons = append(msg.ActionCard.Buttons, dingTalkButton(b))
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, d.endpoint(), body)
	if err != nil {
		return d.mask(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.Client.Do(req)
	if err != nil {
		return d.mask(fmt.Errorf("failed to post notification: %w", err))
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("failed to post notification: unexpected status %s", resp.Status)
	}

	var r dingTalkResponse
	if err := json.Unmarshal(b, &r); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if r.ErrCode != 0 {
		return fmt.Errorf("%w: errcode %d: %s", ErrRejected, r.ErrCode, r.ErrMsg)
	}
	return nil
}

// endpoint returns the webhook URL with the access token and,
// when a secret is set, the timestamp and signature query parameters.
func (d *DingTalk) endpoint() string {
	u := *d.webhook
	q := u.Query()
	if d.token != "" {
		q.Set("access_token", d.token)
	}
	if d.secret != "" {
		ts := d.now().UnixMilli()
		q.Set("timestamp", strconv.FormatInt(ts, 10))
		q.Set("sign", Sign(d.secret, ts))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (d *DingTalk) mask(err error) error {
	return masktoken.MaskError(err, d.token, d.secret)
}

// Sign returns the signature of a robot request sent at the given
// unix time in milliseconds: base64(HMAC-SHA256(secret, "<timestamp>\n<secret>")).
func Sign(secret string, timestampMillis int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d\n%s", timestampMillis, secret)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
