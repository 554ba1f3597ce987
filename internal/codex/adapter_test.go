package codex

import (
	"reflect"
	"testing"

	"sessionhub/internal/model"
)

func TestBuildInvocation(t *testing.T) {
	inv, err := Adapter{}.BuildInvocation("/work/project", "fix it", &model.ToolConfig{
		Model:           "gpt-5-codex",
		PermissionMode:  "workspace-write",
		ResumeSessionID: "sess-9",
	})
	if err != nil {
		t.Fatalf("BuildInvocation returned error: %v", err)
	}
	want := []string{"exec", "--json", "--skip-git-repo-check", "--model", "gpt-5-codex", "--sandbox", "workspace-write", "resume", "sess-9", "-"}
	if !reflect.DeepEqual(inv.Args, want) {
		t.Fatalf("unexpected args: %v", inv.Args)
	}
	if inv.Stdin != "fix it" || inv.Dir != "/work/project" || inv.Executable != "codex" {
		t.Fatalf("unexpected invocation: %+v", inv)
	}

	plain, err := Adapter{}.BuildInvocation("/p", "x", nil)
	if err != nil {
		t.Fatalf("BuildInvocation returned error: %v", err)
	}
	if !reflect.DeepEqual(plain.Args, []string{"exec", "--json", "--skip-git-repo-check", "-"}) {
		t.Fatalf("unexpected args: %v", plain.Args)
	}
}

func TestParseLine(t *testing.T) {
	cases := []struct {
		name string
		line string
		want []model.Token
	}{
		{"thread started", `{"type":"thread.started","thread_id":"t"}`, nil},
		{"agent message", `{"type":"item.completed","item":{"id":"item_1","type":"agent_message","text":"Hello"}}`, []model.Token{{Kind: model.TokenText, Text: "Hello"}}},
		{"reasoning item", `{"type":"item.completed","item":{"type":"reasoning","text":"hmm"}}`, nil},
		{"turn completed", `{"type":"turn.completed","usage":{}}`, []model.Token{{Kind: model.TokenDone}}},
		{"turn failed", `{"type":"turn.failed","error":{"message":"rate limited"}}`, []model.Token{{Kind: model.TokenError, Text: "rate limited"}}},
		{"stream error", `{"type":"error","message":""}`, []model.Token{{Kind: model.TokenError, Text: "codex: request failed"}}},
		{"legacy message", `{"id":"0","msg":{"type":"agent_message","message":"Hi"}}`, []model.Token{{Kind: model.TokenText, Text: "Hi"}}},
		{"legacy delta", `{"id":"0","msg":{"type":"agent_message_delta","delta":"H"}}`, nil},
		{"legacy complete", `{"id":"0","msg":{"type":"task_complete"}}`, []model.Token{{Kind: model.TokenDone}}},
		{"legacy exec approval", `{"id":"0","msg":{"type":"exec_approval_request","command":["git","push"]}}`, []model.Token{{Kind: model.TokenPermission, Tool: "exec", Patterns: []string{"git push"}}}},
		{"legacy patch approval", `{"id":"0","msg":{"type":"apply_patch_approval_request","changes":{"b.go":{},"a.go":{}}}}`, []model.Token{{Kind: model.TokenPermission, Tool: "apply_patch", Patterns: []string{"a.go", "b.go"}}}},
		{"plain text", `Reading prompt from stdin...`, []model.Token{{Kind: model.TokenText, Text: "Reading prompt from stdin...\n"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Adapter{}.ParseLine([]byte(tc.line))
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ParseLine = %+v, want %+v", got, tc.want)
			}
		})
	}
}
