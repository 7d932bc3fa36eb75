package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bookgen/internal/jsonx"
	"github.com/sells-group/bookgen/internal/llm"
	"github.com/sells-group/bookgen/internal/model"
	"github.com/sells-group/bookgen/internal/prompt"
	"github.com/sells-group/bookgen/internal/resilience"
)

// completeText sends one routed generation request for a stage, retrying
// recoverable backend errors, and returns the raw reply text.
func (p *Pipeline) completeText(ctx context.Context, stage model.Stage, system, user string) (string, model.TokenUsage, error) {
	backend, temperature := p.router.ForStage(stage)
	return p.complete(ctx, backend, llm.Request{
		System:      system,
		User:        user,
		Temperature: temperature,
	}, string(stage))
}

func (p *Pipeline) complete(ctx context.Context, backend llm.Completer, req llm.Request, operation string) (string, model.TokenUsage, error) {
	var usage model.TokenUsage

	cfg := p.retry
	cfg.OnRetry = resilience.RetryLogger(backend.Name(), operation)

	resp, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*llm.Response, error) {
		return backend.Complete(ctx, req)
	})
	if err != nil {
		return "", usage, eris.Wrapf(err, "complete %s via %s", operation, backend.Name())
	}
	usage.Add(resp.Usage)
	return resp.Text, usage, nil
}

// completeJSON runs completeText and decodes the reply leniently: extract the
// first JSON span, decode it, and on failure make exactly one repair call
// asking the structured backend to convert the reply into strict JSON. A
// second decode failure returns ErrRepairExhausted; the caller's fallback
// policy decides what happens next.
func (p *Pipeline) completeJSON(ctx context.Context, stage model.Stage, system, user, schemaHint string) (any, model.TokenUsage, error) {
	raw, usage, err := p.completeText(ctx, stage, system, user)
	if err != nil {
		return nil, usage, err
	}

	v, repairUsage, err := p.decodeLenient(ctx, stage, raw, schemaHint)
	usage.Add(repairUsage)
	return v, usage, err
}

// decodeLenient turns raw model text into a parsed JSON value, spending at
// most one repair call.
func (p *Pipeline) decodeLenient(ctx context.Context, stage model.Stage, raw, schemaHint string) (any, model.TokenUsage, error) {
	var usage model.TokenUsage

	v, err := jsonx.ExtractAndDecode(raw)
	if err == nil {
		return v, usage, nil
	}

	zap.L().Warn("model reply not parseable, attempting repair",
		zap.String("stage", string(stage)),
		zap.Error(err),
	)

	backend, temperature := p.router.ForRepair()
	repairUser := raw
	if schemaHint != "" {
		repairUser = "Target JSON shape: " + schemaHint + "\n\nContent:\n" + raw
	}
	repaired, repairUsage, err := p.complete(ctx, backend, llm.Request{
		System:      prompt.RepairSystem,
		User:        repairUser,
		Temperature: temperature,
	}, string(stage)+"_repair")
	usage.Add(repairUsage)
	if err != nil {
		return nil, usage, eris.Wrapf(ErrRepairExhausted, "repair call failed for %s: %v", stage, err)
	}

	v, err = jsonx.ExtractAndDecode(repaired)
	if err != nil {
		return nil, usage, eris.Wrapf(ErrRepairExhausted, "stage %s: %v", stage, err)
	}
	return v, usage, nil
}
