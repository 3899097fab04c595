package repositories

import (
	"context"
	"errors"
	"fmt"

	"visitguard/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const ProfessionalsCollection = "professionals"

// DirectoryRepository reads professional profiles owned by the platform.
// The tracking service never writes to this collection.
type DirectoryRepository struct {
	collection *mongo.Collection
}

type professionalProfile struct {
	ProfessionalID string `bson:"professionalId"`
	FirstName      string `bson:"firstName"`
	FullName       string `bson:"fullName"`
}

func NewDirectoryRepository(database *mongo.Database) *DirectoryRepository {
	return &DirectoryRepository{
		collection: database.Collection(ProfessionalsCollection),
	}
}

func (dr *DirectoryRepository) ProfessionalFirstName(ctx context.Context, professionalID string) (string, error) {
	opts := options.FindOne().SetProjection(bson.M{"professionalId": 1, "firstName": 1, "fullName": 1})

	var profile professionalProfile
	err := dr.collection.FindOne(ctx, bson.M{"professionalId": professionalID}, opts).Decode(&profile)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", utils.ErrNotFound
		}
		return "", fmt.Errorf("failed to get professional: %w", err)
	}

	if profile.FirstName != "" {
		return profile.FirstName, nil
	}
	return utils.FirstName(profile.FullName), nil
}
