// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/bureau-foundation/sshagent/lib/agentkey"
	"github.com/bureau-foundation/sshagent/lib/agentwire"
)

// The sign request for key blob "public key here", data "abcde" and no
// flags.
const signRequestBase64 = "AAAAIQ0AAAAPcHVibGljIGtleSBoZXJlAAAABWFiY2RlAAAAAA=="

func signRequestHex(t *testing.T) string {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(signRequestBase64)
	if err != nil {
		t.Fatal(err)
	}
	return hex.EncodeToString(raw)
}

func TestFrameEncode(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"request identities", []string{"request-identities"}, "000000010b"},
		{"sign request", []string{"sign-request", hex.EncodeToString([]byte("public key here")), hex.EncodeToString([]byte("abcde"))}, signRequestHex(t)},
		{"remove all", []string{"REMOVE-ALL-IDENTITIES"}, "0000000113"},
		{"lock", []string{"lock", "pw"}, "0000000716" + "00000002" + hex.EncodeToString([]byte("pw"))},
		{"success", []string{"success"}, "0000000106"},
		{"empty answer", []string{"identities-answer"}, "000000050c00000000"},
	}
	for _, test := range tests {
		got := runCLI(t, "", "", append([]string{"frame", "encode"}, test.args...)...)
		if got.err != nil {
			t.Errorf("%s: %v", test.name, got.err)
			continue
		}
		if strings.TrimSpace(got.stdout) != test.want {
			t.Errorf("%s: got %s, want %s", test.name, strings.TrimSpace(got.stdout), test.want)
		}
	}
}

func TestFrameEncodeErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no type", nil, "TYPE required"},
		{"unknown type", []string{"sign"}, "unknown frame type"},
		{"extra argument", []string{"request-identities", "x"}, "takes no arguments"},
		{"bad hex", []string{"remove-identity", "zz"}, "key"},
		{"odd answer arguments", []string{"identities-answer", "00"}, "pairs"},
		{"bad constraint", []string{"add-identity-constrained", "00", "c", "forever"}, "unknown constraint"},
		{"bad flag", []string{"sign-request", "00", "00", "rsa-sha1"}, "unknown sign flag"},
	}
	for _, test := range tests {
		got := runCLI(t, "", "", append([]string{"frame", "encode"}, test.args...)...)
		if got.err == nil || !strings.Contains(got.err.Error(), test.want) {
			t.Errorf("%s: err = %v, want %q", test.name, got.err, test.want)
		}
	}
}

func TestFrameDecodeJSON(t *testing.T) {
	t.Parallel()
	// A sign request followed by a request-identities frame, with
	// whitespace the decoder must ignore.
	input := signRequestHex(t) + "\n 000000010b\n"
	got := runCLI(t, "", input, "frame", "decode", "--json")
	if got.err != nil {
		t.Fatalf("decode: %v", got.err)
	}
	var views []struct {
		Type      string `json:"type"`
		Number    uint8  `json:"number"`
		Direction string `json:"direction"`
		Fields    []struct {
			Name  string `json:"name"`
			Value any    `json:"value"`
		} `json:"fields"`
	}
	if err := json.Unmarshal([]byte(got.stdout), &views); err != nil {
		t.Fatalf("decoding output: %v\n%s", err, got.stdout)
	}
	if len(views) != 2 {
		t.Fatalf("decoded %d frames, want 2", len(views))
	}
	sign := views[0]
	if sign.Type != "sign-request" || sign.Number != 13 || sign.Direction != "client" || len(sign.Fields) != 3 {
		t.Fatalf("first frame = %+v", sign)
	}
	if sign.Fields[0].Name != "public_key" || sign.Fields[0].Value != hex.EncodeToString([]byte("public key here")) {
		t.Errorf("public_key field = %+v", sign.Fields[0])
	}
	if sign.Fields[1].Name != "data" || sign.Fields[1].Value != hex.EncodeToString([]byte("abcde")) {
		t.Errorf("data field = %+v", sign.Fields[1])
	}
	if flags, ok := sign.Fields[2].Value.([]any); sign.Fields[2].Name != "flags" || !ok || len(flags) != 0 {
		t.Errorf("flags field = %+v", sign.Fields[2])
	}
	if views[1].Type != "request-identities" || len(views[1].Fields) != 0 {
		t.Errorf("second frame = %+v", views[1])
	}
}

func TestFrameEncodeDecodeConstrainedAdd(t *testing.T) {
	t.Parallel()
	_, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	privateBlob, err := agentkey.MarshalPrivateKey(private)
	if err != nil {
		t.Fatalf("MarshalPrivateKey: %v", err)
	}

	encoded := runCLI(t, "", "", "frame", "encode", "add-identity-constrained",
		hex.EncodeToString(privateBlob), "laptop", "lifetime=60", "confirm")
	if encoded.err != nil {
		t.Fatalf("encode: %v", encoded.err)
	}

	got := runCLI(t, "", encoded.stdout, "frame", "decode")
	if got.err != nil {
		t.Fatalf("decode: %v", got.err)
	}
	for _, want := range []string{
		"add-identity-constrained (25, from client)",
		"comment: laptop",
		"constraints: lifetime=60, confirm",
	} {
		if !strings.Contains(got.stdout, want) {
			t.Errorf("decode output missing %q:\n%s", want, got.stdout)
		}
	}

	// A private key blob cut short is rejected before anything is
	// written.
	truncated := runCLI(t, "", "", "frame", "encode", "add-identity",
		hex.EncodeToString(privateBlob[:len(privateBlob)-8]), "laptop")
	if !errors.Is(truncated.err, agentwire.ErrTruncated) || truncated.stdout != "" {
		t.Errorf("truncated key: err = %v, stdout %q", truncated.err, truncated.stdout)
	}

	success := runCLI(t, "", "", "frame", "decode", "0000000106")
	if success.err != nil || strings.TrimSpace(success.stdout) != "success (6, from agent)" {
		t.Errorf("decode success = %q, err %v", success.stdout, success.err)
	}
}

func TestFrameDecodeErrors(t *testing.T) {
	t.Parallel()

	got := runCLI(t, "", "", "frame", "decode", "000000010b0000")
	if !errors.Is(got.err, agentwire.ErrTrailingBytes) {
		t.Errorf("leftover bytes: err = %v, want ErrTrailingBytes", got.err)
	}
	if !strings.Contains(got.stdout, "request-identities") {
		t.Errorf("frames before the error should still print, got %q", got.stdout)
	}

	got = runCLI(t, "", "", "frame", "decode", "--direction", "agent", "000000010b")
	if !errors.Is(got.err, agentwire.ErrUnknownFrame) {
		t.Errorf("client frame decoded as agent: err = %v, want ErrUnknownFrame", got.err)
	}

	got = runCLI(t, "", "", "frame", "decode", "0000000163")
	if got.err == nil || !strings.Contains(got.err.Error(), "unknown frame type 99") {
		t.Errorf("unknown type byte: err = %v", got.err)
	}

	got = runCLI(t, "", "", "frame", "decode", "xyz")
	if got.err == nil || !strings.Contains(got.err.Error(), "hex") {
		t.Errorf("bad hex: err = %v", got.err)
	}

	got = runCLI(t, "", "", "frame", "decode", "--direction", "sideways", "0000000106")
	if got.err == nil || !strings.Contains(got.err.Error(), "--direction") {
		t.Errorf("bad direction: err = %v", got.err)
	}
}
