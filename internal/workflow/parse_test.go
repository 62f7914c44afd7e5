package workflow

import (
	"testing"

	"github.com/ipvm-wg/homestar/internal/invocation"
)

// TestParseSubmissionAcceptsTheSpecShape decodes the exact §6 example:
// link, byte, and await encodings in one submission.
func TestParseSubmissionAcceptsTheSpecShape(t *testing.T) {
	submission := []byte(`{
		"tasks": [
			{
				"run": {
					"resource": "ipfs://bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi",
					"op": "wasm/run",
					"input": {
						"func": "crop",
						"args": [
							{"/": {"bytes": "aGVsbG8"}},
							{"await/ok": {"/": "bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi"}}
						]
					},
					"nonce": ""
				},
				"meta": {"fuel": 1000000},
				"prf": ["bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi"]
			}
		]
	}`)

	wf, err := ParseSubmission(submission)
	if err != nil {
		t.Fatalf("parse submission: %v", err)
	}
	if len(wf.Tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(wf.Tasks))
	}

	task := wf.Tasks[0]
	if task.Run.Resource.URI != "ipfs://bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi" {
		t.Fatalf("unexpected resource: %s", task.Run.Resource.URI)
	}
	if task.Run.Input.Func != "crop" {
		t.Fatalf("unexpected func: %s", task.Run.Input.Func)
	}
	if len(task.Run.Input.Args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(task.Run.Input.Args))
	}
	if task.Run.Input.Args[0].IsAwait {
		t.Fatal("expected arg 0 to be a literal byte string")
	}
	lit, ok := task.Run.Input.Args[0].Literal.AsBytes()
	if !ok || string(lit) != "hello" {
		t.Fatalf("expected literal bytes %q, got %v (ok=%v)", "hello", lit, ok)
	}
	if !task.Run.Input.Args[1].IsAwait || task.Run.Input.Args[1].Selector != invocation.AwaitOK {
		t.Fatalf("expected arg 1 to be an await/ok promise, got %+v", task.Run.Input.Args[1])
	}
	if len(task.Run.Nonce) != 0 {
		t.Fatalf("expected an empty nonce, got %d bytes", len(task.Run.Nonce))
	}
	if task.Meta.Fuel == nil || *task.Meta.Fuel != 1000000 {
		t.Fatalf("expected fuel 1000000, got %+v", task.Meta.Fuel)
	}
	if len(task.Prf) != 1 {
		t.Fatalf("expected 1 proof, got %d", len(task.Prf))
	}
}

func TestParseSubmissionRejectsMissingTasks(t *testing.T) {
	if _, err := ParseSubmission([]byte(`{}`)); err == nil {
		t.Fatal("expected an error for a submission with no tasks field")
	}
}

func TestParseSubmissionNonceEncodingsAreEquivalent(t *testing.T) {
	base := `{"tasks": [{"run": {
		"resource": "ipfs://bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi",
		"op": "wasm/run",
		"input": {"func": "noop", "args": []},
		"nonce": %s
	}}]}`

	empty, err := ParseSubmission([]byte(fmtSubmission(base, `""`)))
	if err != nil {
		t.Fatalf("parse empty nonce: %v", err)
	}
	if len(empty.Tasks[0].Run.Nonce) != 0 {
		t.Fatalf("expected empty nonce, got %d bytes", len(empty.Tasks[0].Run.Nonce))
	}

	bytesForm, err := ParseSubmission([]byte(fmtSubmission(base, `{"/": {"bytes": "AAAAAAAAAAAAAAAAAAAAAA"}}`)))
	if err != nil {
		t.Fatalf("parse byte-object nonce: %v", err)
	}
	if len(bytesForm.Tasks[0].Run.Nonce) != 16 {
		t.Fatalf("expected a 16-byte nonce, got %d", len(bytesForm.Tasks[0].Run.Nonce))
	}
}

func fmtSubmission(template, nonce string) string {
	out := make([]byte, 0, len(template))
	for i := 0; i < len(template); i++ {
		if template[i] == '%' && i+1 < len(template) && template[i+1] == 's' {
			out = append(out, nonce...)
			i++
			continue
		}
		out = append(out, template[i])
	}
	return string(out)
}
