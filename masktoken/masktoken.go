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

package masktoken

import (
	"fmt"
	"regexp"
	"strings"
)

// Mask is the replacement of every redacted token.
const Mask = "*****"

// MaskTokenFromString redacts all matches for the given token from the provided string,
// replacing them with Mask.
// The token is expected to be a valid UTF-8 string.
func MaskTokenFromString(log string, token string) (string, error) {
	if token == "" {
		return log, nil
	}

	re, err := regexp.Compile(fmt.Sprintf("%s*", regexp.QuoteMeta(token)))
	if err != nil {
		return "", err
	}

	return re.ReplaceAllString(log, Mask), nil
}

// MaskTokens redacts every given token from s. Tokens that can't be
// compiled into a pattern are replaced literally.
func MaskTokens(s string, tokens ...string) string {
	for _, token := range tokens {
		masked, err := MaskTokenFromString(s, token)
		if err != nil {
			masked = strings.ReplaceAll(s, token, Mask)
		}
		s = masked
	}
	return s
}

// maskedError keeps the chain of the original error while
// reporting a redacted message.
type maskedError struct {
	msg string
	err error
}

func (e *maskedError) Error() string { return e.msg }

func (e *maskedError) Unwrap() error { return e.err }

// MaskError returns an error whose message has every given token redacted.
// The returned error unwraps to err, so errors.Is and errors.As keep working.
// A nil err returns nil.
func MaskError(err error, tokens ...string) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	masked := MaskTokens(msg, tokens...)
	if masked == msg {
		return err
	}
	return &maskedError{msg: masked, err: err}
}
