package validator

import (
	"regexp"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
)

// Custom validation tags
const (
	TagEntityType   = "entitytype"   // startup / investor / person / event
	TagFundingStage = "fundingstage" // pre-seed, seed, series-a ...
	TagCountryCode  = "countrycode"  // ISO 3166-1 alpha-2, any case
	TagFacetValue   = "facetvalue"   // no control characters, bounded length
)

var (
	countryCodeRegex = regexp.MustCompile(`^[A-Za-z]{2}$`)

	entityTypes = map[string]struct{}{
		"startup": {}, "investor": {}, "person": {}, "event": {},
	}

	fundingStages = map[string]struct{}{
		"pre-seed": {}, "preseed": {}, "seed": {},
		"series-a": {}, "series-b": {}, "series-c": {},
	}
)

func (v *Validator) registerCustomRules() {
	_ = v.validate.RegisterValidation(TagEntityType, validateEntityType)
	_ = v.validate.RegisterValidation(TagFundingStage, validateFundingStage)
	_ = v.validate.RegisterValidation(TagCountryCode, validateCountryCode)
	_ = v.validate.RegisterValidation(TagFacetValue, validateFacetValue)
}

func validateEntityType(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // 空值交给 required 处理
	}
	_, ok := entityTypes[value]
	return ok
}

func validateFundingStage(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	_, ok := fundingStages[strings.ToLower(value)]
	return ok
}

func validateCountryCode(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return countryCodeRegex.MatchString(value)
}

func validateFacetValue(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if len(value) > 64 {
		return false
	}
	for _, r := range value {
		if r < 0x20 {
			return false
		}
	}
	return true
}

func (v *Validator) registerCustomTranslations() {
	if enTrans := v.GetTranslator(LangEN); enTrans != nil {
		for tag, message := range map[string]string{
			TagEntityType:   "{0} must be one of startup, investor, person, event",
			TagFundingStage: "{0} must be a known funding stage",
			TagCountryCode:  "{0} must be a two-letter country code",
			TagFacetValue:   "{0} contains an invalid facet value",
		} {
			registerTranslation(v.validate, enTrans, tag, message)
		}
	}

	if zhTrans := v.GetTranslator(LangZH); zhTrans != nil {
		for tag, message := range map[string]string{
			TagEntityType:   "{0}必须是 startup、investor、person、event 之一",
			TagFundingStage: "{0}必须是已知的融资阶段",
			TagCountryCode:  "{0}必须是两位国家代码",
			TagFacetValue:   "{0}包含无效的筛选值",
		} {
			registerTranslation(v.validate, zhTrans, tag, message)
		}
	}
}

func registerTranslation(validate *validator.Validate, trans ut.Translator, tag, message string) {
	_ = validate.RegisterTranslation(tag, trans,
		func(ut ut.Translator) error {
			return ut.Add(tag, message, true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			t, _ := ut.T(tag, fe.Field())
			return t
		},
	)
}
