package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/LeviathanIsI/barkbase-sub001/pkg/model"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/record"
)

// Typed record repositories backing the record registry. Each exposes the
// record as a flat field mapping; updates route to a known column when one
// exists and otherwise merge into the row's jsonb fields.

func NewRecordRegistry(db *gorm.DB) *record.Registry {
	registry := record.NewRegistry()
	registry.Register(record.TypePet, &PetRepository{db: db})
	registry.Register(record.TypeOwner, &OwnerRepository{db: db})
	registry.Register(record.TypeBooking, &BookingRepository{db: db})
	return registry
}

type PetRepository struct {
	db *gorm.DB
}

func (r *PetRepository) Get(ctx context.Context, tenantID, id uuid.UUID) (map[string]interface{}, error) {
	var pet model.Pet
	err := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&pet).Error
	if err != nil {
		return nil, err
	}

	fields := cloneFields(pet.Fields)
	fields["id"] = pet.ID.String()
	fields["name"] = pet.Name
	fields["species"] = pet.Species
	fields["breed"] = pet.Breed
	if pet.OwnerID != nil {
		fields["ownerId"] = pet.OwnerID.String()
	}
	if len(pet.Tags) > 0 {
		fields["tags"] = []string(pet.Tags)
	}
	return fields, nil
}

func (r *PetRepository) UpdateField(ctx context.Context, tenantID, id uuid.UUID, field string, value interface{}) error {
	columns := map[string]string{"name": "name", "species": "species", "breed": "breed"}
	return updateRecordField(ctx, r.db, &model.Pet{}, columns, tenantID, id, field, value)
}

type OwnerRepository struct {
	db *gorm.DB
}

func (r *OwnerRepository) Get(ctx context.Context, tenantID, id uuid.UUID) (map[string]interface{}, error) {
	var owner model.Owner
	err := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&owner).Error
	if err != nil {
		return nil, err
	}

	fields := cloneFields(owner.Fields)
	fields["id"] = owner.ID.String()
	fields["firstName"] = owner.FirstName
	fields["lastName"] = owner.LastName
	fields["email"] = owner.Email
	fields["phone"] = owner.Phone
	if owner.EmailConsent != nil {
		fields["email_consent"] = *owner.EmailConsent
	}
	if owner.SMSConsent != nil {
		fields["sms_consent"] = *owner.SMSConsent
	}
	return fields, nil
}

func (r *OwnerRepository) UpdateField(ctx context.Context, tenantID, id uuid.UUID, field string, value interface{}) error {
	columns := map[string]string{
		"firstName": "first_name",
		"lastName":  "last_name",
		"email":     "email",
		"phone":     "phone",
	}
	return updateRecordField(ctx, r.db, &model.Owner{}, columns, tenantID, id, field, value)
}

type BookingRepository struct {
	db *gorm.DB
}

func (r *BookingRepository) Get(ctx context.Context, tenantID, id uuid.UUID) (map[string]interface{}, error) {
	var booking model.Booking
	err := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&booking).Error
	if err != nil {
		return nil, err
	}

	fields := cloneFields(booking.Fields)
	fields["id"] = booking.ID.String()
	fields["status"] = booking.Status
	if booking.PetID != nil {
		fields["petId"] = booking.PetID.String()
	}
	if booking.OwnerID != nil {
		fields["ownerId"] = booking.OwnerID.String()
	}
	if booking.AssigneeID != nil {
		fields["assigneeId"] = booking.AssigneeID.String()
	}
	if booking.StartDate != nil {
		fields["startDate"] = *booking.StartDate
	}
	if booking.EndDate != nil {
		fields["endDate"] = *booking.EndDate
	}
	return fields, nil
}

func (r *BookingRepository) UpdateField(ctx context.Context, tenantID, id uuid.UUID, field string, value interface{}) error {
	columns := map[string]string{"status": "status"}
	return updateRecordField(ctx, r.db, &model.Booking{}, columns, tenantID, id, field, value)
}

func cloneFields(fields model.JSONB) map[string]interface{} {
	cloned := make(map[string]interface{}, len(fields)+8)
	for key, value := range fields {
		cloned[key] = value
	}
	return cloned
}

func updateRecordField(ctx context.Context, db *gorm.DB, mdl interface{}, columns map[string]string, tenantID, id uuid.UUID, field string, value interface{}) error {
	query := db.WithContext(ctx).
		Model(mdl).
		Where("id = ? AND tenant_id = ?", id, tenantID)

	if column, ok := columns[field]; ok {
		result := query.UpdateColumns(map[string]interface{}{
			column:       value,
			"updated_at": time.Now(),
		})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("record %s not found", id)
		}
		return nil
	}

	patch, err := json.Marshal(map[string]interface{}{field: value})
	if err != nil {
		return fmt.Errorf("marshal field patch: %w", err)
	}
	result := query.UpdateColumns(map[string]interface{}{
		"fields":     gorm.Expr("COALESCE(fields, '{}'::jsonb) || ?::jsonb", string(patch)),
		"updated_at": time.Now(),
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("record %s not found", id)
	}
	return nil
}
