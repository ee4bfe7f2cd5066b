// Handler wiring.
//
// Handlers groups the HTTP endpoints for messages, profiles, and
// notifications. It depends on abstract service interfaces to keep transport
// concerns separate from business logic.
package handlers

// Handlers bundles the API endpoints and their service dependencies.
type Handlers struct {
	msgSvc   MessageService
	profSvc  ProfileService
	notifSvc NotificationService
}

// New constructs a Handlers instance bound to the given services.
func New(msgSvc MessageService, profSvc ProfileService, notifSvc NotificationService) *Handlers {
	return &Handlers{
		msgSvc:   msgSvc,
		profSvc:  profSvc,
		notifSvc: notifSvc,
	}
}
