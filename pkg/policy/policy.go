// Package policy evaluates Rego rules that mute notifications at ingest.
//
// Rules live in package "ingest" and set "skip" to true for notifications
// that should be dropped. The notification is the input document with the
// same field names as the ingest API (appName, packageName, title, text,
// time, isOngoing, notificationId).
package policy

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/m-mizutani/deepfocus/pkg/model"
	"github.com/m-mizutani/deepfocus/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/topdown/print"
)

const muteQuery = "data.ingest"

type printHook struct {
	ctx context.Context
}

func (h *printHook) Print(_ print.Context, message string) error {
	logging.From(h.ctx).Debug("rego print", "message", message)
	return nil
}

// Mute is a prepared mute policy
type Mute struct {
	query *rego.PreparedEvalQuery
	files []string
}

// Load reads every .rego file in dir. It returns nil without error when the
// directory has no policy files.
func Load(ctx context.Context, dir string) (*Mute, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.rego"))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to glob policy files", goerr.V("dir", dir))
	}
	if len(files) == 0 {
		return nil, nil
	}

	sources := make(map[string]string, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read policy file", goerr.V("path", file))
		}
		sources[file] = string(data)
	}

	m, err := New(ctx, sources)
	if err != nil {
		return nil, err
	}
	m.files = files
	return m, nil
}

// New prepares a mute policy from module sources keyed by file name
func New(ctx context.Context, sources map[string]string) (*Mute, error) {
	options := make([]func(*rego.Rego), 0, len(sources)+1)
	options = append(options, rego.Query(muteQuery))
	for name, src := range sources {
		options = append(options, rego.Module(name, src))
	}

	prepared, err := rego.New(options...).PrepareForEval(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to prepare mute policy", goerr.V("query", muteQuery))
	}

	return &Mute{query: &prepared}, nil
}

// Files returns the policy files the rules were loaded from
func (m *Mute) Files() []string {
	return m.files
}

// Mute reports whether the notification should be dropped
func (m *Mute) Mute(ctx context.Context, n *model.Notification) (bool, error) {
	input, err := toInput(n)
	if err != nil {
		return false, err
	}

	rs, err := m.query.Eval(ctx,
		rego.EvalInput(input),
		rego.EvalPrintHook(&printHook{ctx: ctx}),
	)
	if err != nil {
		return false, goerr.Wrap(err, "failed to evaluate mute policy", goerr.V("id", n.ID))
	}

	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}

	data, ok := rs[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return false, nil
	}

	switch skip := data["skip"].(type) {
	case nil:
		return false, nil
	case bool:
		return skip, nil
	default:
		return false, goerr.New("invalid mute policy result: skip is not a boolean",
			goerr.V("id", n.ID),
			goerr.V("skip", skip))
	}
}

func toInput(n *model.Notification) (map[string]any, error) {
	raw, err := json.Marshal(n)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal notification", goerr.V("id", n.ID))
	}
	var input map[string]any
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, goerr.Wrap(err, "failed to build policy input", goerr.V("id", n.ID))
	}
	return input, nil
}
