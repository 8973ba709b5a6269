// Package farming implements the terminal USSD actions and the web chatbot
// on top of the advice and crop prediction collaborators.
package farming

import (
	"context"
	"errors"
	"strings"
	"time"

	"mudhumeni-backend/internal/advisor"
	"mudhumeni-backend/internal/catalog"
	"mudhumeni-backend/internal/logger"
	"mudhumeni-backend/internal/predictor"
	"mudhumeni-backend/internal/store"
)

const (
	defaultAnswerMax = 140
	webPhonePrefix   = "web:"
)

var errNoPhone = errors.New("farming: caller has no phone number")

type Config struct {
	// AnswerMax bounds free-text answers shown over USSD.
	AnswerMax int
	// Now is the clock used to pick the season; defaults to time.Now.
	Now func() time.Time
}

type Service struct {
	cat       *catalog.Catalog
	prefs     store.PreferenceStore
	advisor   advisor.Advisor
	predictor predictor.Predictor
	answerMax int
	now       func() time.Time
	log       *logger.Logger
}

func NewService(cat *catalog.Catalog, prefs store.PreferenceStore, adv advisor.Advisor, pred predictor.Predictor, cfg Config, log *logger.Logger) *Service {
	if cfg.AnswerMax <= 0 {
		cfg.AnswerMax = defaultAnswerMax
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}
	if adv == nil {
		adv = advisor.NewStatic()
	}
	if pred == nil {
		pred = predictor.Rules{}
	}
	return &Service{
		cat:       cat,
		prefs:     prefs,
		advisor:   adv,
		predictor: pred,
		answerMax: cfg.AnswerMax,
		now:       cfg.Now,
		log:       log,
	}
}

// Season is the current season name.
func (s *Service) Season() string {
	return Season(s.now())
}

// Substitutions fills runtime values into menu text.
func (s *Service) Substitutions(lang string) map[string]string {
	return map[string]string{"season": s.cat.Translate(s.Season(), lang, nil)}
}

func (s *Service) preference(ctx context.Context, phone string) *store.Preference {
	if s.prefs == nil || phone == "" {
		return nil
	}
	p, err := s.prefs.GetByPhone(ctx, phone)
	if err != nil {
		s.log.Warn("failed to load preferences", "phone", phone, "error", err)
		return nil
	}
	return p
}

// updatePreference applies fn to the caller's record, creating it if needed.
func (s *Service) updatePreference(ctx context.Context, userID, phone string, fn func(p *store.Preference)) error {
	if phone == "" {
		return errNoPhone
	}
	if s.prefs == nil {
		return errors.New("farming: no preference store")
	}
	p, err := s.prefs.GetByPhone(ctx, phone)
	if err != nil {
		return err
	}
	if p == nil {
		p = &store.Preference{UserID: userID, Phone: phone}
	}
	if p.UserID == "" {
		p.UserID = userID
	}
	fn(p)
	return s.prefs.Put(ctx, p)
}

func (s *Service) userContext(p *store.Preference) advisor.UserContext {
	season := s.Season()
	uc := advisor.UserContext{Season: season, SeasonalCrops: SeasonalCrops[season]}
	if p != nil {
		uc.Location = p.Location
		uc.FarmingType = p.FarmingType
	}
	return uc
}

// ChatRequest is one message of the web chatbot.
type ChatRequest struct {
	// UserKey identifies the browser; preferences are stored under it.
	UserKey string
	Message string
	History []advisor.Turn
}

// Chat answers the web chatbot. A few requests are handled locally before
// the model is asked. The reply is always displayable.
func (s *Service) Chat(ctx context.Context, req ChatRequest) string {
	const lang = "en"
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return s.cat.Translate("web_empty_question", lang, nil)
	}
	lower := strings.ToLower(msg)
	phone := webPhonePrefix + req.UserKey

	if strings.HasPrefix(lower, "set location:") {
		location := advisor.Sanitize(msg[len("set location:"):])
		if location != "" && req.UserKey != "" {
			err := s.updatePreference(ctx, req.UserKey, phone, func(p *store.Preference) { p.Location = location })
			if err != nil {
				s.log.Error("failed to save web location", "user_id", req.UserKey, "error", err)
				return s.cat.Translate("web_error", lang, nil)
			}
			return s.cat.Translate("web_location_noted", lang, map[string]string{"location": location})
		}
	}

	if strings.Contains(lower, "season") && (strings.Contains(lower, "current") || strings.Contains(lower, "now")) {
		season := s.Season()
		return s.cat.Translate("web_current_season", lang, map[string]string{
			"season": season,
			"crops":  strings.Join(SeasonalCrops[season], ", "),
		})
	}

	uc := s.userContext(s.preference(ctx, phone))
	uc.History = req.History
	answer, err := s.advisor.Advise(ctx, advisor.Query{Channel: advisor.ChannelWeb, Question: msg, Context: uc})
	if err != nil {
		s.log.Warn("web chat advice failed", "user_id", req.UserKey, "error", err)
		return s.cat.Translate("web_error", lang, nil)
	}
	return answer
}

// Recommendation is the web crop recommendation result.
type Recommendation struct {
	Crop           string
	Alternatives   []string
	Season         string
	SeasonalAdvice string
	Source         string
}

func (s *Service) Recommend(ctx context.Context, soil predictor.Soil) (Recommendation, error) {
	p, err := s.predictor.Predict(ctx, soil)
	if err != nil {
		return Recommendation{}, err
	}
	season := s.Season()
	rec := Recommendation{
		Crop:           p.Best(),
		Season:         season,
		SeasonalAdvice: s.seasonalAdvice(p.Best(), season, "en"),
		Source:         p.Source,
	}
	if len(p.Crops) > 1 {
		rec.Alternatives = p.Crops[1:]
	}
	return rec, nil
}

// seasonalAdvice says whether crop suits season, or which season suits it.
// Crops absent from every season list get no advice.
func (s *Service) seasonalAdvice(crop, season, lang string) string {
	if crop == "" {
		return ""
	}
	if inSeason(season, strings.ToLower(crop)) {
		return s.cat.Translate("seasonal_advice_good", lang, map[string]string{
			"crop":   titleCase(crop),
			"season": s.cat.Translate(season, lang, nil),
		})
	}
	if other, ok := SeasonOf(crop); ok {
		return s.cat.Translate("seasonal_advice_other", lang, map[string]string{
			"crop":   titleCase(crop),
			"season": s.cat.Translate(other, lang, nil),
		})
	}
	return ""
}
