package farming

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mudhumeni-backend/internal/advisor"
	"mudhumeni-backend/internal/catalog"
	"mudhumeni-backend/internal/predictor"
	"mudhumeni-backend/internal/store"
	"mudhumeni-backend/internal/ussd"
)

type fakeAdvisor struct {
	mu      sync.Mutex
	answer  string
	err     error
	queries []advisor.Query
	spec    *advisor.PromptSpec
}

func (f *fakeAdvisor) Advise(ctx context.Context, q advisor.Query) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	return f.answer, f.err
}

func (f *fakeAdvisor) Topic(name string, uc advisor.UserContext, extra map[string]string) string {
	return f.spec.Topic(name, uc, extra)
}

func (f *fakeAdvisor) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

type failingPredictor struct{}

func (failingPredictor) Predict(ctx context.Context, s predictor.Soil) (predictor.Prediction, error) {
	return predictor.Prediction{}, errors.New("model offline")
}

type singlePredictor struct{ crop string }

func (p singlePredictor) Predict(ctx context.Context, s predictor.Soil) (predictor.Prediction, error) {
	return predictor.Prediction{Crops: []string{p.crop}, Source: "model"}, nil
}

const phone = "+263772000000"

var january = time.Date(2026, time.January, 15, 9, 0, 0, 0, time.UTC)

type harness struct {
	cat    *catalog.Catalog
	prefs  *store.MemoryPreferenceStore
	adv    *fakeAdvisor
	svc    *Service
	engine *ussd.Engine
}

func newHarness(t *testing.T, pred predictor.Predictor) *harness {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	spec, err := advisor.DefaultPromptSpec()
	require.NoError(t, err)

	h := &harness{
		cat:   cat,
		prefs: store.NewMemoryPreferenceStore(),
		adv:   &fakeAdvisor{spec: spec, answer: "Use certified seed."},
	}
	h.svc = NewService(cat, h.prefs, h.adv, pred, Config{AnswerMax: 140, Now: func() time.Time { return january }}, nil)
	h.engine, err = ussd.NewEngine(cat, store.NewMemorySessionStore(time.Minute), h.prefs, h.svc.Actions(), ussd.Options{
		Substitutions: h.svc.Substitutions,
	})
	require.NoError(t, err)
	return h
}

func (h *harness) dial(session, text string) ussd.Response {
	return h.engine.Step(context.Background(), ussd.Request{SessionID: session, ServiceCode: "*384*123#", Phone: phone, Text: text})
}

func TestSeason(t *testing.T) {
	cases := map[time.Month]string{
		time.January: Summer, time.February: Summer, time.March: Autumn, time.May: Autumn,
		time.June: Winter, time.August: Winter, time.September: Spring, time.November: Spring,
		time.December: Summer,
	}
	for m, want := range cases {
		assert.Equal(t, want, Season(time.Date(2026, m, 1, 0, 0, 0, 0, time.UTC)), m.String())
	}

	s, ok := SeasonOf("Barley")
	assert.True(t, ok)
	assert.Equal(t, Autumn, s)
	_, ok = SeasonOf("coffee")
	assert.False(t, ok)
}

func TestAskQuestionFormatsAnswer(t *testing.T) {
	h := newHarness(t, nil)
	h.adv.answer = "Apply Compound D at planting at 300 kg per hectare. " +
		"Top dress with ammonium nitrate four to six weeks after emergence. " +
		"Split the top dressing when rains are heavy."

	got := h.dial("a1", "1*6*What fertilizer for maize")
	require.True(t, got.End)
	assert.LessOrEqual(t, len([]rune(got.Text)), 140)
	assert.Equal(t, "Apply Compound D at planting at 300 kg per hectare. Top dress with ammonium nitrate four to six weeks after emergence.", got.Text)

	require.Equal(t, 1, h.adv.calls())
	q := h.adv.queries[0]
	assert.Equal(t, advisor.ChannelUSSD, q.Channel)
	assert.Equal(t, "What fertilizer for maize", q.Question)
	assert.Equal(t, Summer, q.Context.Season)
}

func TestAdvisorFailureUsesStaticText(t *testing.T) {
	h := newHarness(t, nil)
	h.adv.err = errors.New("timeout")

	got := h.dial("b1", "1*6*What fertilizer for maize")
	assert.Equal(t, "END Sorry, couldn't process your question. Please try again later.", got.String())

	got = h.dial("b2", "1*2")
	assert.Equal(t, "END "+h.cat.Translate("fallback_fertilizer", "en", nil), got.String())

	got = h.dial("b3", "2*4*cotton")
	assert.Equal(t, "END Cotton is grown in Southern Africa. For detailed info, visit our web platform.", got.String())

	got = h.dial("b4", "0*Is it too late to plant")
	assert.Equal(t, "END Sorry, I'm having trouble right now. Please try again later.", got.String())
}

func TestAdviceTopicAsksModel(t *testing.T) {
	h := newHarness(t, nil)
	got := h.dial("c1", "1*3")
	assert.Equal(t, "END Use certified seed.", got.String())
	assert.Contains(t, h.adv.queries[0].Question, "pest and disease control")
	assert.Contains(t, h.adv.queries[0].Question, Summer)
}

func TestChatAddsFooter(t *testing.T) {
	h := newHarness(t, nil)
	got := h.dial("d1", "0*When do I plant beans")
	assert.Equal(t, "END Use certified seed.\n\nTo continue chatting, dial *384*123# again", got.String())
}

func TestCropInfo(t *testing.T) {
	h := newHarness(t, nil)
	got := h.dial("e1", "2*4*sweet potato")
	assert.Equal(t, "END Sweet Potato:\nUse certified seed.", got.String())
	assert.Contains(t, h.adv.queries[0].Question, "sweet potato")
}

func TestLocationFlow(t *testing.T) {
	h := newHarness(t, nil)

	got := h.dial("f1", "2*1")
	assert.Equal(t, "END "+h.cat.Translate("no_location_set", "en", nil), got.String())

	got = h.dial("f2", "4*7")
	assert.Equal(t, "END Your location has been set to Masvingo", got.String())

	p, err := h.prefs.GetByPhone(context.Background(), phone)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Masvingo", p.Location)
	assert.NotEmpty(t, p.UserID)

	got = h.dial("f3", "2*1")
	assert.Equal(t, "END Recommended crops for Masvingo (summer):\nmaize, sorghum, millet", got.String())

	got = h.dial("f4", "3*3")
	assert.True(t, strings.HasPrefix(got.Text, "Weather guidance for Masvingo:\n"))
}

func TestPreferencesCarryAcrossSessions(t *testing.T) {
	h := newHarness(t, nil)

	got := h.dial("g1", "5*3")
	assert.Equal(t, "END Your farming type has been set to Large-scale commercial", got.String())

	got = h.dial("g2", "6*2")
	assert.Equal(t, "END Mutauro wako wasarudzwa kuva Shona", got.String())

	// The next dial-in renders in Shona where translations exist
	got = h.dial("g3", "3")
	assert.True(t, strings.HasPrefix(got.Text, "Current season: zhizha\n"))
	got = h.dial("g3", "3*9")
	assert.True(t, strings.HasPrefix(got.Text, "Sarudzo isiri iyo. "))

	p, _ := h.prefs.GetByPhone(context.Background(), phone)
	assert.Equal(t, "large_scale_commercial", p.FarmingType)
	assert.Equal(t, "sn", p.Language)
}

func TestSeasonalMenu(t *testing.T) {
	h := newHarness(t, nil)

	got := h.dial("h1", "3*1")
	assert.Equal(t, "END Recommended crops for summer:\nmaize, sorghum, millet", got.String())

	got = h.dial("h2", "3*2")
	assert.Equal(t, "END Farming activities for summer:\n"+h.cat.Translate("activities_summer", "en", nil), got.String())
}

func TestCropPredictionWithRules(t *testing.T) {
	h := newHarness(t, predictor.Rules{})

	got := h.dial("i1", "2*2*120*120*40*25*70*6.5*1200")
	require.True(t, got.End)
	assert.Equal(t, "Recommended crops for your region:\n1. maize\n2. tobacco\n3. cotton\n\nCurrent season: summer", got.Text)
	assert.Equal(t, 0, h.adv.calls())
}

func TestCropPredictionWithModel(t *testing.T) {
	h := newHarness(t, singlePredictor{crop: "wheat"})
	got := h.dial("j1", "2*2*90*42*43*20.8*82*6.5*202.9")
	assert.Contains(t, got.Text, "1. wheat\nNote: Wheat is typically better for winter season.")
}

func TestCropPredictionFailure(t *testing.T) {
	h := newHarness(t, failingPredictor{})
	got := h.dial("k1", "2*2*90*42*43*20.8*82*6.5*202.9")
	assert.Equal(t, "END "+h.cat.Translate("prediction_failed", "en", nil), got.String())
}

func TestSoilFromFields(t *testing.T) {
	_, err := SoilFromFields([]store.FieldValue{{Name: "nitrogen", Value: 1}})
	assert.Error(t, err)
}

func TestWebChat(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	assert.Equal(t, "Please enter a valid question.", h.svc.Chat(ctx, ChatRequest{UserKey: "w1", Message: "  "}))
	assert.Equal(t, "Thank you! I've noted that you're farming in Mutare.", h.svc.Chat(ctx, ChatRequest{UserKey: "w1", Message: "Set location: Mutare"}))
	assert.Contains(t, h.svc.Chat(ctx, ChatRequest{UserKey: "w1", Message: "What is the current season?"}), "We're currently in summer season")
	assert.Equal(t, 0, h.adv.calls())

	history := []advisor.Turn{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hello"}}
	assert.Equal(t, "Use certified seed.", h.svc.Chat(ctx, ChatRequest{UserKey: "w1", Message: "How do I store seed?", History: history}))
	q := h.adv.queries[0]
	assert.Equal(t, advisor.ChannelWeb, q.Channel)
	assert.Equal(t, "Mutare", q.Context.Location)
	assert.Equal(t, history, q.Context.History)

	h.adv.err = errors.New("boom")
	assert.Equal(t, h.cat.Translate("web_error", "en", nil), h.svc.Chat(ctx, ChatRequest{UserKey: "w1", Message: "again"}))
}

func TestRecommend(t *testing.T) {
	h := newHarness(t, singlePredictor{crop: "maize"})
	rec, err := h.svc.Recommend(context.Background(), predictor.Soil{})
	require.NoError(t, err)
	assert.Equal(t, "maize", rec.Crop)
	assert.Equal(t, Summer, rec.Season)
	assert.Equal(t, "Good choice! Maize is well-suited for the current summer season.", rec.SeasonalAdvice)

	h = newHarness(t, singlePredictor{crop: "coffee"})
	rec, err = h.svc.Recommend(context.Background(), predictor.Soil{})
	require.NoError(t, err)
	assert.Empty(t, rec.SeasonalAdvice)

	h = newHarness(t, failingPredictor{})
	_, err = h.svc.Recommend(context.Background(), predictor.Soil{})
	assert.Error(t, err)
}
