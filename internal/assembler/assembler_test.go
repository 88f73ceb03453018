package assembler

import (
	"context"
	"strings"
	"testing"
	"time"

	"inboxpilot/internal/cache"
	"inboxpilot/internal/config"
	"inboxpilot/internal/database"
	"inboxpilot/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeThreadReader struct {
	thread   *models.Thread
	messages []models.EmailMessage
}

func (f *fakeThreadReader) GetThread(_ context.Context, threadID, _ string) (*models.Thread, error) {
	if f.thread == nil {
		return nil, &database.ThreadNotFoundError{ThreadID: threadID}
	}
	return f.thread, nil
}

func (f *fakeThreadReader) GetMessages(_ context.Context, threadID string) ([]models.EmailMessage, error) {
	if len(f.messages) == 0 {
		return nil, &database.ThreadNotFoundError{ThreadID: threadID}
	}
	return f.messages, nil
}

type fakeContextReader struct {
	entries []models.CompanyContext
	calls   int
}

func (f *fakeContextReader) GetCompanyContext(_ context.Context, _ string) ([]models.CompanyContext, error) {
	f.calls++
	return f.entries, nil
}

func testConfig(contextMax, messageMax int) *config.Config {
	return &config.Config{
		ContextMaxChars: contextMax,
		MessageMaxChars: messageMax,
	}
}

func newTestAssembler(threads ThreadReader, contexts ContextReader, contextMax, messageMax int) *Assembler {
	return New(threads, contexts, cache.New(time.Minute), testConfig(contextMax, messageMax), zerolog.Nop())
}

func TestAssemble(t *testing.T) {
	threads := &fakeThreadReader{
		thread: &models.Thread{ID: "t-1", UserID: "user-1", Subject: "Refund request"},
		messages: []models.EmailMessage{
			{Sender: "customer@example.com", BodyText: "I want a refund.", Timestamp: time.Now().Add(-time.Hour)},
			{Sender: "support@example.com", BodyText: "Looking into it.", Timestamp: time.Now()},
		},
	}
	contexts := &fakeContextReader{
		entries: []models.CompanyContext{
			{ContextType: models.ContextTypePolicy, Title: "Refunds", Content: "Full refund within 30 days."},
		},
	}

	a := newTestAssembler(threads, contexts, 12000, 5000)
	tc, err := a.Assemble(context.Background(), "t-1", "user-1")
	require.NoError(t, err)

	assert.Equal(t, "t-1", tc.Thread.ID)
	assert.Len(t, tc.Emails, 2)
	assert.Equal(t, "support@example.com", tc.Latest().Sender)
	assert.Contains(t, tc.ContextBlock, "[POLICY]")
	assert.Contains(t, tc.ContextBlock, "Full refund within 30 days.")
}

func TestAssemble_DefaultToneFromContext(t *testing.T) {
	threads := &fakeThreadReader{
		thread:   &models.Thread{ID: "t-1", UserID: "user-1"},
		messages: []models.EmailMessage{{Sender: "a@b.c", BodyText: "hi", Timestamp: time.Now()}},
	}
	contexts := &fakeContextReader{
		entries: []models.CompanyContext{
			{ContextType: models.ContextTypePolicy, Title: "Refunds", Content: "30 days."},
			{ContextType: models.ContextTypeTone, Title: "Voice", Content: "  warm and concise  "},
		},
	}

	a := newTestAssembler(threads, contexts, 12000, 5000)
	tc, err := a.Assemble(context.Background(), "t-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "warm and concise", tc.DefaultTone)

	// The cached block path keeps the tone too
	tc, err = a.Assemble(context.Background(), "t-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "warm and concise", tc.DefaultTone)
	assert.Equal(t, 1, contexts.calls)
}

func TestAssemble_ThreadWithoutMessagesIsNotFound(t *testing.T) {
	threads := &fakeThreadReader{
		thread: &models.Thread{ID: "t-1", UserID: "user-1"},
	}

	a := newTestAssembler(threads, &fakeContextReader{}, 12000, 5000)
	_, err := a.Assemble(context.Background(), "t-1", "user-1")

	var notFound *database.ThreadNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestAssemble_ContextBlockIsCachedPerUser(t *testing.T) {
	threads := &fakeThreadReader{
		thread:   &models.Thread{ID: "t-1", UserID: "user-1"},
		messages: []models.EmailMessage{{Sender: "a@b.c", BodyText: "hi", Timestamp: time.Now()}},
	}
	contexts := &fakeContextReader{
		entries: []models.CompanyContext{{ContextType: "tone", Title: "Voice", Content: "Friendly."}},
	}

	a := newTestAssembler(threads, contexts, 12000, 5000)
	_, err := a.Assemble(context.Background(), "t-1", "user-1")
	require.NoError(t, err)
	_, err = a.Assemble(context.Background(), "t-1", "user-1")
	require.NoError(t, err)

	assert.Equal(t, 1, contexts.calls)
}

func TestTrimMessages_PerMessageCap(t *testing.T) {
	a := newTestAssembler(nil, nil, 12000, 20)

	emails := a.trimMessages([]models.EmailMessage{
		{Sender: "a@b.c", BodyText: strings.Repeat("x", 100)},
	}, 12000)

	require.Len(t, emails, 1)
	assert.Len(t, emails[0].Body, 20)
	assert.True(t, strings.HasSuffix(emails[0].Body, "..."))
}

func TestTrimMessages_DropsOldestFirst(t *testing.T) {
	a := newTestAssembler(nil, nil, 250, 5000)

	messages := make([]models.EmailMessage, 4)
	for i := range messages {
		messages[i] = models.EmailMessage{
			Sender:   "a@b.c",
			BodyText: strings.Repeat(string(rune('a'+i)), 100),
		}
	}

	emails := a.trimMessages(messages, 250)
	require.Len(t, emails, 2)
	assert.True(t, strings.HasPrefix(emails[0].Body, "c"))
	assert.True(t, strings.HasPrefix(emails[1].Body, "d"))
}

func TestTrimMessages_NewestAlwaysKept(t *testing.T) {
	a := newTestAssembler(nil, nil, 10, 5000)

	emails := a.trimMessages([]models.EmailMessage{
		{BodyText: strings.Repeat("a", 100)},
		{BodyText: strings.Repeat("b", 100)},
	}, 10)

	require.Len(t, emails, 1)
	assert.True(t, strings.HasPrefix(emails[0].Body, "b"))
	assert.LessOrEqual(t, len(emails[0].Body), 10)
}

func TestAssemble_WholePromptWithinBudget(t *testing.T) {
	threads := &fakeThreadReader{
		thread: &models.Thread{ID: "t-1", UserID: "user-1", Subject: "Refund"},
		messages: []models.EmailMessage{
			{Sender: "a@b.c", BodyText: strings.Repeat("m", 1900), Timestamp: time.Now()},
		},
	}
	contexts := &fakeContextReader{
		entries: []models.CompanyContext{
			{ContextType: models.ContextTypePolicy, Title: "Refunds", Content: strings.Repeat("p", 5000)},
		},
	}

	a := newTestAssembler(threads, contexts, 2000, 5000)
	tc, err := a.Assemble(context.Background(), "t-1", "user-1")
	require.NoError(t, err)

	// The context block and the message bodies share one budget; together
	// they never exceed it.
	total := len(tc.ContextBlock)
	for _, email := range tc.Emails {
		total += len(email.Body)
	}
	assert.LessOrEqual(t, len(tc.ContextBlock), 1000)
	assert.LessOrEqual(t, total, 2000)
	require.Len(t, tc.Emails, 1)
}

func TestRenderContextBlock_GroupsByType(t *testing.T) {
	entries := []models.CompanyContext{
		{ContextType: "faq", Title: "Shipping", Content: "Ships in 2 days."},
		{ContextType: "faq", Title: "Returns", Content: "30 day window."},
		{ContextType: "policy", Title: "Refunds", Content: "Full refund."},
	}

	block := renderContextBlock(entries, 12000)

	assert.Contains(t, block, "[FAQ]")
	assert.Contains(t, block, "[POLICY]")
	assert.Less(t, strings.Index(block, "[FAQ]"), strings.Index(block, "[POLICY]"))
	assert.Contains(t, block, "- Shipping: Ships in 2 days.")
	assert.Contains(t, block, "- Returns: 30 day window.")
}

func TestRenderContextBlock_AllGroupsSurviveTruncation(t *testing.T) {
	entries := []models.CompanyContext{
		{ContextType: "policy", Title: "P", Content: strings.Repeat("p", 500)},
		{ContextType: "tone", Title: "T", Content: "Friendly and concise."},
		{ContextType: "faq", Title: "F", Content: strings.Repeat("f", 500)},
	}

	block := renderContextBlock(entries, 300)

	assert.LessOrEqual(t, len(block), 300)
	assert.Contains(t, block, "[POLICY]")
	assert.Contains(t, block, "[TONE]")
	assert.Contains(t, block, "[FAQ]")
	// The small group fits completely; the large ones are cut.
	assert.Contains(t, block, "Friendly and concise.")
}

func TestRenderContextBlock_Empty(t *testing.T) {
	assert.Equal(t, "", renderContextBlock(nil, 1000))
}
