package farming

import (
	"context"
	"fmt"
	"strings"

	"mudhumeni-backend/internal/advisor"
	"mudhumeni-backend/internal/predictor"
	"mudhumeni-backend/internal/store"
	"mudhumeni-backend/internal/ussd"
)

// Actions returns the handlers for every terminal action of the menu tree.
func (s *Service) Actions() ussd.Actions {
	return ussd.Actions{
		"advice_topic": {
			Run: s.adviceTopic,
			Fallback: func(c ussd.Call) string {
				return s.cat.Translate("fallback_"+c.Arg, c.Language, nil)
			},
		},
		"ask_question": {
			Run:      s.askQuestion,
			Fallback: s.translated("question_failed"),
		},
		"chat": {
			Run:      s.chat,
			Fallback: s.translated("chat_failed"),
		},
		"crop_info": {
			Run: s.cropInfo,
			Fallback: func(c ussd.Call) string {
				crop := titleCase(advisor.Sanitize(c.Input))
				return s.cat.Translate("crop_info_fallback", c.Language, map[string]string{"crop": crop})
			},
		},
		"location_crops":      {Run: s.locationCrops},
		"crop_prediction":     {Run: s.cropPrediction, Fallback: s.translated("prediction_failed")},
		"seasonal_crops":      {Run: s.seasonalCrops},
		"seasonal_activities": {Run: s.seasonalActivities},
		"weather_guidance":    {Run: s.weatherGuidance},
		"set_location":        {Run: s.setLocation},
		"set_farming_type":    {Run: s.setFarmingType},
		"set_language":        {Run: s.setLanguage},
	}
}

func (s *Service) translated(key string) func(ussd.Call) string {
	return func(c ussd.Call) string {
		return s.cat.Translate(key, c.Language, nil)
	}
}

func (s *Service) ask(ctx context.Context, c ussd.Call, question string) (string, error) {
	uc := s.userContext(s.preference(ctx, c.Phone))
	answer, err := s.advisor.Advise(ctx, advisor.Query{Channel: advisor.ChannelUSSD, Question: question, Context: uc})
	if err != nil {
		return "", err
	}
	return ussd.Format(answer, s.answerMax), nil
}

func (s *Service) adviceTopic(ctx context.Context, c ussd.Call) (string, error) {
	uc := s.userContext(s.preference(ctx, c.Phone))
	question := s.advisor.Topic(c.Arg, uc, nil)
	if question == "" {
		return "", fmt.Errorf("unknown advice topic %q", c.Arg)
	}
	return s.ask(ctx, c, question)
}

func (s *Service) askQuestion(ctx context.Context, c ussd.Call) (string, error) {
	return s.ask(ctx, c, c.Input)
}

func (s *Service) chat(ctx context.Context, c ussd.Call) (string, error) {
	answer, err := s.ask(ctx, c, c.Input)
	if err != nil {
		return "", err
	}
	footer := s.cat.Translate("chat_footer", c.Language, map[string]string{"service_code": c.ServiceCode})
	return answer + "\n\n" + footer, nil
}

func (s *Service) cropInfo(ctx context.Context, c ussd.Call) (string, error) {
	crop := advisor.Sanitize(c.Input)
	uc := s.userContext(s.preference(ctx, c.Phone))
	answer, err := s.ask(ctx, c, s.advisor.Topic("crop_info", uc, map[string]string{"crop": crop}))
	if err != nil {
		return "", err
	}
	return titleCase(crop) + ":\n" + answer, nil
}

func (s *Service) locationCrops(ctx context.Context, c ussd.Call) (string, error) {
	p := s.preference(ctx, c.Phone)
	if p == nil || p.Location == "" {
		return s.cat.Translate("no_location_set", c.Language, nil), nil
	}
	season := s.Season()
	return fmt.Sprintf("%s %s (%s):\n%s",
		s.cat.Translate("recommended_crops", c.Language, nil),
		p.Location,
		s.cat.Translate(season, c.Language, nil),
		strings.Join(topCrops(season, 3), ", "),
	), nil
}

func (s *Service) cropPrediction(ctx context.Context, c ussd.Call) (string, error) {
	soil, err := SoilFromFields(c.Fields)
	if err != nil {
		return "", err
	}
	p, err := s.predictor.Predict(ctx, soil)
	if err != nil {
		return "", err
	}
	if len(p.Crops) == 0 {
		return "", predictor.ErrUnknownLabel
	}

	region := s.cat.Translate("your_region", c.Language, nil)
	if pref := s.preference(ctx, c.Phone); pref != nil && pref.Location != "" {
		region = pref.Location
	}
	season := s.Season()

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s:\n", s.cat.Translate("recommended_crops", c.Language, nil), region)
	for i, crop := range p.Crops {
		fmt.Fprintf(&b, "%d. %s\n", i+1, crop)
	}
	if len(p.Crops) == 1 {
		if advice := s.seasonalAdvice(p.Best(), season, c.Language); advice != "" {
			b.WriteString(advice)
			b.WriteString("\n")
		}
	}
	fmt.Fprintf(&b, "\n%s: %s", s.cat.Translate("current_season", c.Language, nil), s.cat.Translate(season, c.Language, nil))
	return b.String(), nil
}

func (s *Service) seasonalCrops(ctx context.Context, c ussd.Call) (string, error) {
	season := s.Season()
	return fmt.Sprintf("%s %s:\n%s",
		s.cat.Translate("recommended_crops", c.Language, nil),
		s.cat.Translate(season, c.Language, nil),
		strings.Join(topCrops(season, 3), ", "),
	), nil
}

func (s *Service) seasonalActivities(ctx context.Context, c ussd.Call) (string, error) {
	season := s.Season()
	return fmt.Sprintf("%s %s:\n%s",
		s.cat.Translate("farming_activities", c.Language, nil),
		s.cat.Translate(season, c.Language, nil),
		s.cat.Translate("activities_"+season, c.Language, nil),
	), nil
}

func (s *Service) weatherGuidance(ctx context.Context, c ussd.Call) (string, error) {
	region := s.cat.Translate("your_region", c.Language, nil)
	if p := s.preference(ctx, c.Phone); p != nil && p.Location != "" {
		region = p.Location
	}
	return fmt.Sprintf("%s %s:\n%s",
		s.cat.Translate("weather_guidance", c.Language, nil),
		region,
		s.cat.Translate("weather_"+s.Season(), c.Language, nil),
	), nil
}

func (s *Service) setLocation(ctx context.Context, c ussd.Call) (string, error) {
	err := s.updatePreference(ctx, c.UserID, c.Phone, func(p *store.Preference) { p.Location = c.Arg })
	if err != nil {
		return "", err
	}
	return s.cat.Translate("location_set", c.Language, nil) + " " + c.Arg, nil
}

func (s *Service) setFarmingType(ctx context.Context, c ussd.Call) (string, error) {
	err := s.updatePreference(ctx, c.UserID, c.Phone, func(p *store.Preference) { p.FarmingType = c.Arg })
	if err != nil {
		return "", err
	}
	return s.cat.Translate("farming_type_set", c.Language, nil) + " " + s.cat.Translate(c.Arg, c.Language, nil), nil
}

// setLanguage answers in the newly chosen language.
func (s *Service) setLanguage(ctx context.Context, c ussd.Call) (string, error) {
	err := s.updatePreference(ctx, c.UserID, c.Phone, func(p *store.Preference) { p.Language = c.Arg })
	if err != nil {
		return "", err
	}
	label := c.Arg
	if o, ok := s.cat.Lookup("languages", c.Arg); ok {
		label = s.cat.OptionLabel(o, c.Arg)
	}
	return s.cat.Translate("language_set", c.Arg, nil) + " " + label, nil
}

// SoilFromFields converts a completed soil_data collection.
func SoilFromFields(fields []store.FieldValue) (predictor.Soil, error) {
	var soil predictor.Soil
	targets := map[string]*float64{
		"nitrogen":    &soil.Nitrogen,
		"phosphorus":  &soil.Phosphorus,
		"potassium":   &soil.Potassium,
		"temperature": &soil.Temperature,
		"humidity":    &soil.Humidity,
		"ph":          &soil.PH,
		"rainfall":    &soil.Rainfall,
	}
	for _, f := range fields {
		if dst, ok := targets[f.Name]; ok {
			*dst = f.Value
			delete(targets, f.Name)
		}
	}
	if len(targets) > 0 {
		missing := make([]string, 0, len(targets))
		for name := range targets {
			missing = append(missing, name)
		}
		return soil, fmt.Errorf("incomplete soil record, missing %s", strings.Join(missing, ", "))
	}
	return soil, nil
}
