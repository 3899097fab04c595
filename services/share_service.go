package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"visitguard/models"
	"visitguard/utils"

	"github.com/sirupsen/logrus"
)

// ShareAccess is what a valid share token grants: read access to one visit
// until the token expires or is revoked.
type ShareAccess struct {
	VisitID   string
	Token     string
	ExpiresAt *time.Time
	View      models.PublicSessionView
}

// =================== SHARING ===================

// Share gives an external contact a live link to the visit. Sharing again
// with a phone that already holds a usable link returns that link.
func (ts *TrackingService) Share(ctx context.Context, visitID, professionalID string, req models.ShareSessionRequest) (*models.SharedContact, error) {
	phone := utils.NormalizePhoneNumber(req.Phone)
	if phone == "" {
		return nil, utils.NewValidationError("phone is required")
	}

	ttl := ts.config.ShareLinkTTL
	if req.ExpiresInHours > 0 {
		ttl = time.Duration(req.ExpiresInHours) * time.Hour
	}

	var contact models.SharedContact
	issued := false

	session, err := ts.mutate(ctx, visitID, func(session *models.TrackingSession) error {
		issued = false
		if err := requireActiveOwner(session, professionalID); err != nil {
			return err
		}

		now := ts.now()
		active := 0
		for _, existing := range session.SharedWith {
			if !existing.IsUsable(now) {
				continue
			}
			if existing.Phone == phone {
				contact = existing
				return errNoChange
			}
			active++
		}
		if active >= models.MaxActiveSharedContacts {
			return utils.ErrTooManyContacts
		}

		token, err := ts.newToken()
		if err != nil {
			return fmt.Errorf("failed to generate share token: %w", err)
		}
		expiresAt := now.Add(ttl)

		contact = models.SharedContact{
			Name:         req.Name,
			Phone:        phone,
			Relationship: req.Relationship,
			Token:        token,
			URL:          utils.BuildShareURL(ts.config.PublicBaseURL, token),
			NotifiedAt:   &now,
			IsActive:     true,
			ExpiresAt:    &expiresAt,
			CreatedAt:    now,
		}
		session.SharedWith = append(session.SharedWith, contact)
		issued = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if issued {
		logrus.WithFields(logrus.Fields{
			"visitId": visitID,
			"phone":   utils.MaskPhoneNumber(phone),
			"expires": contact.ExpiresAt.UTC().Format(time.RFC3339),
		}).Info("Tracking session shared")

		ts.dispatch(models.Notification{
			VisitID:    session.VisitID,
			Kind:       models.NotificationShareInvite,
			Severity:   models.SeverityInfo,
			Title:      "Visit tracking link",
			Message:    fmt.Sprintf("Hi %s, you can follow a home visit live here: %s", utils.FirstName(contact.Name), contact.URL),
			Recipients: []models.NotificationRecipient{smsRecipient(contact)},
			Data: map[string]string{
				"visitId": session.VisitID,
				"url":     contact.URL,
			},
		})
	}

	return &contact, nil
}

// Revoke deactivates the contact's link. Revoking a phone without an active
// link does nothing.
func (ts *TrackingService) Revoke(ctx context.Context, visitID, professionalID, phone string) error {
	normalized := utils.NormalizePhoneNumber(phone)
	var revoked []string

	_, err := ts.mutate(ctx, visitID, func(session *models.TrackingSession) error {
		revoked = revoked[:0]
		if session.ProfessionalID != professionalID {
			return utils.ErrUnauthorized
		}

		now := ts.now()
		for i := range session.SharedWith {
			contact := &session.SharedWith[i]
			if contact.Phone != normalized || !contact.IsActive {
				continue
			}
			contact.IsActive = false
			contact.RevokedAt = &now
			revoked = append(revoked, contact.Token)
		}
		if len(revoked) == 0 {
			return errNoChange
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, token := range revoked {
		if ts.broadcaster != nil {
			ts.broadcaster.CloseShareViewers(token)
		}
	}
	if len(revoked) > 0 {
		logrus.WithFields(logrus.Fields{
			"visitId": visitID,
			"phone":   utils.MaskPhoneNumber(normalized),
		}).Info("Share link revoked")
	}

	return nil
}

// ListShares returns every contact the visit was ever shared with.
func (ts *TrackingService) ListShares(ctx context.Context, visitID, professionalID string) ([]models.SharedContact, error) {
	session, err := ts.Get(ctx, visitID, professionalID)
	if err != nil {
		return nil, err
	}
	if session.SharedWith == nil {
		return []models.SharedContact{}, nil
	}
	return session.SharedWith, nil
}

// ResolvePublic returns the public projection for a share token. Unknown,
// revoked and expired tokens are indistinguishable to the caller.
func (ts *TrackingService) ResolvePublic(ctx context.Context, token string) (*models.PublicSessionView, error) {
	access, err := ts.AuthorizeShare(ctx, token)
	if err != nil {
		return nil, err
	}
	return &access.View, nil
}

// AuthorizeShare validates a share token and returns what it grants.
func (ts *TrackingService) AuthorizeShare(ctx context.Context, token string) (*ShareAccess, error) {
	if token == "" {
		return nil, utils.ErrInvalidOrExpiredLink
	}

	session, err := ts.store.GetByShareToken(ctx, token)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.ErrInvalidOrExpiredLink
		}
		return nil, fmt.Errorf("failed to resolve share token: %w", err)
	}

	now := ts.now()
	var contact *models.SharedContact
	for i := range session.SharedWith {
		if session.SharedWith[i].Token == token {
			contact = &session.SharedWith[i]
			break
		}
	}
	if contact == nil || !contact.IsUsable(now) {
		return nil, utils.ErrInvalidOrExpiredLink
	}

	return &ShareAccess{
		VisitID:   session.VisitID,
		Token:     token,
		ExpiresAt: contact.ExpiresAt,
		View:      ts.publicView(ctx, session),
	}, nil
}

func (ts *TrackingService) publicView(ctx context.Context, session *models.TrackingSession) models.PublicSessionView {
	view := models.PublicSessionView{
		ServiceType:       session.ServiceType,
		LastKnownLocation: session.LastKnownLocation,
		IsActive:          session.IsActive,
		StartedAt:         session.StartedAt,
		PatientDistrict:   session.PatientAddress.District,
		PanicActive:       session.HasActivePanic(),
	}

	if ts.directory != nil {
		firstName, err := ts.directory.ProfessionalFirstName(ctx, session.ProfessionalID)
		if err != nil && !errors.Is(err, utils.ErrNotFound) {
			logrus.WithField("visitId", session.VisitID).Warnf("Failed to resolve professional name: %v", err)
		}
		view.ProfessionalFirstName = firstName
	}

	return view
}
