package merge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/fusion-intel/pkg/anthropic"
)

// Oracle produces a semantically merged version of two texts. It is an
// external, potentially unreliable service; callers must treat every
// error as recoverable.
type Oracle interface {
	MergeSection(ctx context.Context, sectionName, base, update string) (string, error)
	MergeCompany(ctx context.Context, companyName, base, update string) (string, error)
}

const sectionMergeSystem = `You are an expert editor of fusion-energy research documentation.
Merge two versions of a document section.

Rules:
1. Keep the markdown structure (## and #### headers) exactly as-is
2. Keep the document's original language
3. Integrate new information from UPDATE where it fits
4. Prefer UPDATE's numbers (funding, team size, TRL) on conflict
5. Keep all citation markers [n]
6. Do not drop existing information unless UPDATE explicitly contradicts it
7. Keep bold (**text**), bullet lists (-) and tables (|) formatting

Respond with the merged section only, no commentary.`

const sectionMergeUser = `Merge these two versions of the section %q.

=== ORIGINAL ===
%s

=== UPDATE ===
%s

=== MERGED SECTION ===`

const companyMergeSystem = `You are an expert on fusion-energy company data.
Merge two versions of a company profile.

Rules:
1. Keep every standard field (Profil, Technologie, Finanzierung, Investoren, Team, Meilensteine, Partnerschaften)
2. Prefer UPDATE's numbers for funding, team size and TRL
3. Add new partnerships and milestones from UPDATE
4. Keep existing information unless UPDATE explicitly corrects it
5. Keep all citation markers [n]
6. Keep the header structure: #### Company Name (Location)

Respond with the merged profile only, no commentary.`

const companyMergeUser = `Merge these two profiles for %q.

=== ORIGINAL ===
%s

=== UPDATE ===
%s

=== MERGED PROFILE ===`

// anthropicOracle implements Oracle against the Claude messages API,
// pacing calls with a rate limiter and bounding each with a timeout.
type anthropicOracle struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	timeout   time.Duration
	limiter   *rate.Limiter
}

// NewAnthropicOracle builds the production merge oracle. rps bounds the
// request rate across both merge granularities.
func NewAnthropicOracle(client anthropic.Client, model string, maxTokens int64, timeout time.Duration, rps float64) Oracle {
	if rps <= 0 {
		rps = 1
	}
	return &anthropicOracle{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
		timeout:   timeout,
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (o *anthropicOracle) MergeSection(ctx context.Context, sectionName, base, update string) (string, error) {
	prompt := fmt.Sprintf(sectionMergeUser, sectionName, base, update)
	return o.complete(ctx, sectionMergeSystem, prompt, "merge_section")
}

func (o *anthropicOracle) MergeCompany(ctx context.Context, companyName, base, update string) (string, error) {
	prompt := fmt.Sprintf(companyMergeUser, companyName, base, update)
	return o.complete(ctx, companyMergeSystem, prompt, "merge_company")
}

func (o *anthropicOracle) complete(ctx context.Context, system, prompt, phase string) (string, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return "", err
	}

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.client.CreateMessage(callCtx, anthropic.MessageRequest{
		Model:     o.model,
		MaxTokens: o.maxTokens,
		System:    system,
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	resp.Usage.LogCost(o.model, phase)

	return strings.TrimSpace(resp.Text()), nil
}

// Adapter wraps an Oracle with the fallback and chunking policy: oracle
// failure yields the update text verbatim (prefer-newer) instead of
// failing the merge, and sections above the chunk threshold are merged
// company-by-company.
type Adapter struct {
	oracle    Oracle
	chunkSize int
}

// NewAdapter creates an Adapter. chunkSize is the combined character
// count above which a section is decomposed into company blocks.
func NewAdapter(oracle Oracle, chunkSize int) *Adapter {
	return &Adapter{oracle: oracle, chunkSize: chunkSize}
}

// MergeSection merges one section, never failing: on oracle error the
// update content wins.
func (a *Adapter) MergeSection(ctx context.Context, sectionName, base, update string) string {
	merged, err := a.oracle.MergeSection(ctx, sectionName, base, update)
	if err != nil {
		zap.L().Warn("section merge oracle failed, preferring update",
			zap.String("section", sectionName),
			zap.Error(err),
		)
		return update
	}
	return merged
}

// MergeCompany merges one company block with the same fallback contract.
func (a *Adapter) MergeCompany(ctx context.Context, companyName, base, update string) string {
	merged, err := a.oracle.MergeCompany(ctx, companyName, base, update)
	if err != nil {
		zap.L().Warn("company merge oracle failed, preferring update",
			zap.String("company", companyName),
			zap.Error(err),
		)
		return update
	}
	return merged
}

// FitsWholeSection reports whether both versions together are small
// enough to merge in a single oracle call.
func (a *Adapter) FitsWholeSection(base, update string) bool {
	return len(base)+len(update) < a.chunkSize
}
