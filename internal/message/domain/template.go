package domain

import (
	"fmt"

	"github.com/allisson/notifier/internal/errors"
)

// Message templates. Rendering happens provider-side; the queue only checks
// that the payload carries every variable the template declares.
const (
	TemplateAdminNewOrder  = "admin_new_order"
	TemplateOrderConfirmed = "order_confirmed"
	TemplatePaymentOverdue = "payment_overdue"
)

// templateVariables maps each known template to its required payload variables.
var templateVariables = map[string][]string{
	TemplateAdminNewOrder:  {"order_id", "client_name", "total"},
	TemplateOrderConfirmed: {"order_id", "client_name"},
	TemplatePaymentOverdue: {"client_name", "debt"},
}

// ErrUnknownTemplate indicates the template name is not registered.
var ErrUnknownTemplate = errors.Wrap(errors.ErrInvalidInput, "unknown template")

// ValidatePayload checks that the template is known and that the payload
// carries every variable the template requires. Extra payload keys are
// allowed; the mapping stays schema-less at the boundary.
func ValidatePayload(template string, payload Payload) error {
	required, ok := templateVariables[template]
	if !ok {
		return ErrUnknownTemplate
	}

	for _, name := range required {
		if _, ok := payload[name]; !ok {
			return errors.Wrap(
				errors.ErrInvalidInput,
				fmt.Sprintf("template %q requires payload variable %q", template, name),
			)
		}
	}
	return nil
}
