package request

// ProvisionTemplateGroup carries options applied on top of every template
// of the group.
type ProvisionTemplateGroup struct {
	Additional map[string]any `json:"additional_options"`
}
