package actions

// BuiltinActions returns the default automation catalog.
func BuiltinActions() []Action {
	return []Action{
		{
			ID:          "send_email",
			Label:       "Send Email",
			Description: "Send an email notification",
			Params:      []string{"to", "subject", "body"},
		},
		{
			ID:          "generate_doc",
			Label:       "Generate Document",
			Description: "Generate a document from template",
			Params:      []string{"template", "recipient", "format"},
		},
		{
			ID:          "update_record",
			Label:       "Update Record",
			Description: "Update a database record",
			Params:      []string{"recordId", "field", "value"},
		},
		{
			ID:          "create_notification",
			Label:       "Create Notification",
			Description: "Create an in-app notification",
			Params:      []string{"userId", "message", "priority"},
		},
		{
			ID:          "schedule_reminder",
			Label:       "Schedule Reminder",
			Description: "Schedule a reminder for a future date",
			Params:      []string{"reminderDate", "message", "recipient"},
		},
	}
}

// Builtin returns a Registry holding the default catalog.
func Builtin() *Registry {
	return MustRegistry(BuiltinActions()...)
}
