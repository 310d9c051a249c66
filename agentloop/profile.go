package agentloop

import "github.com/spektasoft/spekta-cli/unifiedllm"

// defaultContextWindow applies to models missing from the catalog.
const defaultContextWindow = 128000

// Profile describes the provider and model a session talks to.
type Profile struct {
	Provider          string
	Model             string
	ContextWindow     int
	MaxOutput         int // 0 when the catalog does not know the model
	SupportsReasoning bool
}

// NewProfile resolves catalog capabilities for a provider/model pair.
func NewProfile(provider, model string) Profile {
	p := Profile{
		Provider:      provider,
		Model:         model,
		ContextWindow: unifiedllm.ContextWindow(model, defaultContextWindow),
	}
	if info := unifiedllm.GetModelInfo(model); info != nil {
		p.Model = info.ID
		p.MaxOutput = info.MaxOutput
		p.SupportsReasoning = info.SupportsReasoning
	}
	return p
}

// outputLimit caps a requested completion size at what the model can
// produce. A nil request takes the model's limit.
func (p Profile) outputLimit(requested *int) *int {
	if p.MaxOutput <= 0 {
		return requested
	}
	if requested == nil || *requested > p.MaxOutput {
		limit := p.MaxOutput
		return &limit
	}
	return requested
}
