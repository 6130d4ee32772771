// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

type embeddedParams struct {
	Output
	Lifetime time.Duration `flag:"lifetime" desc:"key lifetime" default:"1h"`
	Confirm  bool          `flag:"confirm,c" desc:"confirm each use"`
	Retries  int           `flag:"retries" default:"2"`
	Flags    []string      `flag:"flags" default:"rsa-sha2-256"`
	Comment  string        `flag:"comment" default:"agentctl"`
	ignored  string
}

func TestBindFlags_DefaultsAndParsing(t *testing.T) {
	t.Parallel()
	var params embeddedParams
	flagSet := FlagsFromParams("add", &params)

	if params.Lifetime != time.Hour || params.Retries != 2 || params.Comment != "agentctl" {
		t.Errorf("defaults not applied: %+v", params)
	}
	if len(params.Flags) != 1 || params.Flags[0] != "rsa-sha2-256" {
		t.Errorf("slice default = %v", params.Flags)
	}

	err := flagSet.Parse([]string{"--json", "-c", "--lifetime", "30s", "--flags", "a,b", "--retries=0"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !params.JSON || params.CBOR {
		t.Errorf("embedded Output flags: %+v", params.Output)
	}
	if !params.Confirm || params.Lifetime != 30*time.Second || params.Retries != 0 {
		t.Errorf("parsed values: %+v", params)
	}
	if len(params.Flags) != 2 {
		t.Errorf("flags = %v", params.Flags)
	}
}

func TestBindFlags_Errors(t *testing.T) {
	t.Parallel()

	var notPointer embeddedParams
	if err := BindFlags(notPointer, pflag.NewFlagSet("x", pflag.ContinueOnError)); err == nil {
		t.Error("expected error for non-pointer params")
	}

	var unsupported struct {
		Ratio float32 `flag:"ratio"`
	}
	err := BindFlags(&unsupported, pflag.NewFlagSet("x", pflag.ContinueOnError))
	if err == nil || !strings.Contains(err.Error(), "unsupported type") {
		t.Errorf("unsupported type: got %v", err)
	}

	var badDefault struct {
		Timeout time.Duration `flag:"timeout" default:"soon"`
	}
	err = BindFlags(&badDefault, pflag.NewFlagSet("x", pflag.ContinueOnError))
	if err == nil || !strings.Contains(err.Error(), "--timeout") {
		t.Errorf("bad default: got %v", err)
	}
}
