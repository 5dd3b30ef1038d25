package cli_test

import (
	"context"
	"testing"

	"github.com/alokranjan04/admin-voice-agent/pkg/cli"
	"github.com/m-mizutani/gt"
)

func TestRun(t *testing.T) {
	ctx := context.Background()

	testCases := map[string]struct {
		args    []string
		wantErr string
	}{
		"profiles from file": {
			args: []string{"admin-voice-agent", "profiles", "--profile-file", "../../examples/profiles.yaml"},
		},
		"built-in profile": {
			args: []string{"admin-voice-agent", "profiles"},
		},
		"missing profile file": {
			args:    []string{"admin-voice-agent", "profiles", "--profile-file", "testdata/none.yaml"},
			wantErr: "failed to load profiles",
		},
		"unknown repository": {
			args:    []string{"admin-voice-agent", "slots", "--date", "2026-03-02", "--repository", "bogus"},
			wantErr: "unknown repository type",
		},
		"unknown profile": {
			args:    []string{"admin-voice-agent", "slots", "--date", "2026-03-02", "--profile", "nope"},
			wantErr: "profile is not defined",
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			err := cli.Run(ctx, tc.args)
			if tc.wantErr == "" {
				gt.True(t, err == nil)
				return
			}
			gt.True(t, err != nil)
			gt.Equal(t, err.Code, 1)
			gt.S(t, err.Message).Contains(tc.wantErr)
		})
	}
}
