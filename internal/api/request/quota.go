package request

// SetQuotaLimits maps quota names to new limits. A negative limit means
// unlimited.
type SetQuotaLimits struct {
	Limits map[string]float64 `json:"limits" validate:"required,min=1,dive,keys,required,endkeys"`
}
