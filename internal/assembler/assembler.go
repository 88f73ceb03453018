// Package assembler gathers everything a prompt needs for one thread: the
// thread row, its message history, and the user's company context rendered
// as a single bounded text block.
package assembler

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"inboxpilot/internal/cache"
	"inboxpilot/internal/config"
	"inboxpilot/internal/models"
	"inboxpilot/internal/prompts"

	"github.com/rs/zerolog"
)

// ThreadReader resolves threads and their messages from local storage.
type ThreadReader interface {
	GetThread(ctx context.Context, threadID, userID string) (*models.Thread, error)
	GetMessages(ctx context.Context, threadID string) ([]models.EmailMessage, error)
}

// ContextReader loads a user's company context entries.
type ContextReader interface {
	GetCompanyContext(ctx context.Context, userID string) ([]models.CompanyContext, error)
}

// ThreadContext is the assembled, truncated input for a capability prompt.
type ThreadContext struct {
	Thread       *models.Thread
	Emails       []prompts.EmailEntry // oldest first, newest always kept
	ContextBlock string
	DefaultTone  string // from the user's tone context entry, may be empty
}

// Latest returns the newest message in the thread.
func (tc *ThreadContext) Latest() prompts.EmailEntry {
	return tc.Emails[len(tc.Emails)-1]
}

// Assembler reads thread and context data and applies the truncation
// budgets. It never writes anything.
type Assembler struct {
	threads         ThreadReader
	contexts        ContextReader
	blocks          *cache.BlockCache
	contextMaxChars int
	messageMaxChars int
	logger          zerolog.Logger
}

// New creates an assembler with the configured character budgets.
func New(threads ThreadReader, contexts ContextReader, blocks *cache.BlockCache, cfg *config.Config, logger zerolog.Logger) *Assembler {
	return &Assembler{
		threads:         threads,
		contexts:        contexts,
		blocks:          blocks,
		contextMaxChars: cfg.ContextMaxChars,
		messageMaxChars: cfg.MessageMaxChars,
		logger:          logger.With().Str("component", "assembler").Logger(),
	}
}

// Assemble resolves the thread, loads and truncates its messages, and
// renders the user's company context block (cached per user).
func (a *Assembler) Assemble(ctx context.Context, threadID, userID string) (*ThreadContext, error) {
	thread, err := a.threads.GetThread(ctx, threadID, userID)
	if err != nil {
		return nil, err
	}

	messages, err := a.threads.GetMessages(ctx, thread.ID)
	if err != nil {
		return nil, err
	}

	block, tone, err := a.contextBlock(ctx, userID)
	if err != nil {
		return nil, err
	}

	// One budget covers the whole prompt: whatever the context block
	// consumed comes out of the message allowance.
	emails := a.trimMessages(messages, a.contextMaxChars-len(block))
	if len(emails) < len(messages) {
		a.logger.Debug().
			Str("thread_id", thread.ID).
			Int("kept", len(emails)).
			Int("total", len(messages)).
			Msg("dropped oldest messages to fit context budget")
	}

	return &ThreadContext{
		Thread:       thread,
		Emails:       emails,
		ContextBlock: block,
		DefaultTone:  tone,
	}, nil
}

const toneCacheSuffix = ":tone"

func (a *Assembler) contextBlock(ctx context.Context, userID string) (string, string, error) {
	if block, ok := a.blocks.Get(userID); ok {
		tone, _ := a.blocks.Get(userID + toneCacheSuffix)
		return block, tone, nil
	}

	entries, err := a.contexts.GetCompanyContext(ctx, userID)
	if err != nil {
		return "", "", err
	}

	// The block gets at most half the overall budget so the thread
	// itself is never squeezed out.
	block := renderContextBlock(entries, a.contextMaxChars/2)
	tone := defaultTone(entries)
	a.blocks.Set(userID, block)
	a.blocks.Set(userID+toneCacheSuffix, tone)
	return block, tone, nil
}

// defaultTone picks the voice for drafted replies from the first tone
// context entry.
func defaultTone(entries []models.CompanyContext) string {
	for _, e := range entries {
		if e.ContextType == models.ContextTypeTone {
			return strings.TrimSpace(e.Content)
		}
	}
	return ""
}

// trimMessages caps each body at the per-message limit, then drops the
// oldest messages while the rendered total exceeds budget. The newest
// message is always kept, clipped to the budget when it alone exceeds it.
func (a *Assembler) trimMessages(messages []models.EmailMessage, budget int) []prompts.EmailEntry {
	perMessage := a.messageMaxChars
	if budget > 0 && budget < perMessage {
		perMessage = budget
	}

	emails := make([]prompts.EmailEntry, len(messages))
	total := 0
	for i, msg := range messages {
		body := truncate(msg.BodyText, perMessage)
		emails[i] = prompts.EmailEntry{
			Sender:    msg.Sender,
			Timestamp: msg.Timestamp,
			Body:      body,
		}
		total += len(body)
	}

	for len(emails) > 1 && total > budget {
		total -= len(emails[0].Body)
		emails = emails[1:]
	}
	return emails
}

// renderContextBlock concatenates entries grouped by type within the
// character budget. When the budget is tight every type group keeps a fair
// share so no group disappears entirely; unused share from small groups is
// redistributed to the larger ones.
func renderContextBlock(entries []models.CompanyContext, maxChars int) string {
	if len(entries) == 0 {
		return ""
	}

	var order []string
	groups := make(map[string]string)
	for _, entry := range entries {
		if _, seen := groups[entry.ContextType]; !seen {
			order = append(order, entry.ContextType)
		}
		groups[entry.ContextType] += fmt.Sprintf("- %s: %s\n", entry.Title, entry.Content)
	}

	total := 0
	for _, text := range groups {
		total += len(text) + headerLen
	}

	if total > maxChars {
		shrinkGroups(order, groups, maxChars)
	}

	var b strings.Builder
	for _, contextType := range order {
		text := groups[contextType]
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, "[%s]\n%s\n", strings.ToUpper(contextType), strings.TrimRight(text, "\n"))
	}
	return strings.TrimRight(b.String(), "\n")
}

// headerLen approximates the rendered "[TYPE]\n" framing per group.
const headerLen = 12

// shrinkGroups truncates group texts to fit the budget. Smallest groups are
// settled first: groups under their fair share keep everything and donate
// the remainder, the rest are cut at the recomputed share.
func shrinkGroups(order []string, groups map[string]string, maxChars int) {
	budget := maxChars - len(groups)*headerLen
	if budget < 0 {
		budget = 0
	}

	bySize := make([]string, len(order))
	copy(bySize, order)
	sort.SliceStable(bySize, func(i, j int) bool {
		return len(groups[bySize[i]]) < len(groups[bySize[j]])
	})

	remaining := budget
	pending := len(groups)
	for _, contextType := range bySize {
		share := remaining / pending
		text := groups[contextType]
		if len(text) > share {
			groups[contextType] = truncate(text, share)
			remaining -= share
		} else {
			remaining -= len(text)
		}
		pending--
	}
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
