// Package lands manages parcel listings and their photos.
package lands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Gogul11/oriyam/internal/app/domain/land"
	"github.com/Gogul11/oriyam/internal/app/objectstore"
	"github.com/Gogul11/oriyam/internal/app/services"
	"github.com/Gogul11/oriyam/internal/app/storage"
	"github.com/Gogul11/oriyam/pkg/logger"
)

// ErrNotOwner is returned when a user modifies a parcel they do not own.
var ErrNotOwner = errors.New("not the land owner")

// maxPhotos caps how many photos one listing may carry.
const maxPhotos = 5

// PhotoUpload is one incoming photo file.
type PhotoUpload struct {
	Filename string
	Data     io.Reader
}

// Input carries the fields of a listing request.
type Input struct {
	Title         string
	Description   string
	Area          float64
	AreaUnit      string
	MonthlyRent   float64
	SoilType      string
	WaterSource   string
	AvailableFrom string
	AvailableTo   string
	Coordinates   []land.Point
	Photos        []PhotoUpload
}

// Service manages land listings.
type Service struct {
	store   storage.LandStore
	objects objectstore.Store
	log     *logger.Logger
}

// New constructs a land service.
func New(store storage.LandStore, objects objectstore.Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("lands")
	}
	return &Service{
		store:   store,
		objects: objects,
		log:     log,
	}
}

// Add lists a new parcel. Photos are stored first; if the listing itself
// fails every stored photo is removed again so no orphan objects remain.
func (s *Service) Add(ctx context.Context, ownerID string, in Input) (land.Land, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.AreaUnit = strings.TrimSpace(in.AreaUnit)

	if in.Title == "" {
		return land.Land{}, services.Invalidf("title is required")
	}
	if in.Area <= 0 {
		return land.Land{}, services.Invalidf("area must be positive")
	}
	if in.MonthlyRent <= 0 {
		return land.Land{}, services.Invalidf("monthly_rent must be positive")
	}
	if in.AreaUnit == "" {
		in.AreaUnit = "acre"
	}
	if len(in.Photos) > maxPhotos {
		return land.Land{}, services.Invalidf("at most %d photos per listing", maxPhotos)
	}

	keys := make([]string, 0, len(in.Photos))
	for _, photo := range in.Photos {
		key, err := s.objects.Put(ctx, ownerID, photo.Filename, photo.Data)
		if err != nil {
			s.removePhotos(ctx, keys)
			return land.Land{}, fmt.Errorf("store photo %s: %w", photo.Filename, err)
		}
		keys = append(keys, key)
	}

	created, err := s.store.CreateLand(ctx, land.Land{
		OwnerID:       ownerID,
		Title:         in.Title,
		Description:   in.Description,
		Area:          in.Area,
		AreaUnit:      in.AreaUnit,
		MonthlyRent:   in.MonthlyRent,
		SoilType:      in.SoilType,
		WaterSource:   in.WaterSource,
		AvailableFrom: in.AvailableFrom,
		AvailableTo:   in.AvailableTo,
		Coordinates:   in.Coordinates,
		PhotoKeys:     keys,
		Available:     true,
	})
	if err != nil {
		s.removePhotos(ctx, keys)
		return land.Land{}, err
	}

	s.log.WithField("land_id", created.ID).
		WithField("owner_id", ownerID).
		Info("land listed")
	return created, nil
}

func (s *Service) removePhotos(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := s.objects.Delete(ctx, key); err != nil {
			s.log.WithError(err).WithField("key", key).Warn("failed to remove orphan photo")
		}
	}
}

// Get returns one parcel.
func (s *Service) Get(ctx context.Context, id string) (land.Land, error) {
	return s.store.GetLand(ctx, id)
}

// Browse returns available parcels listed by other users, newest first. A
// user never sees their own parcels in the browse view.
func (s *Service) Browse(ctx context.Context, viewerID string) ([]land.Land, error) {
	return s.store.ListAvailableLandsExcluding(ctx, viewerID)
}

// Mine returns the parcels the user owns, newest first.
func (s *Service) Mine(ctx context.Context, ownerID string) ([]land.Land, error) {
	return s.store.ListLandsByOwner(ctx, ownerID)
}

// Update edits a listing. Only the owner may update, and ownership itself
// never changes.
func (s *Service) Update(ctx context.Context, userID, landID string, in Input) (land.Land, error) {
	current, err := s.store.GetLand(ctx, landID)
	if err != nil {
		return land.Land{}, err
	}
	if current.OwnerID != userID {
		return land.Land{}, ErrNotOwner
	}

	if v := strings.TrimSpace(in.Title); v != "" {
		current.Title = v
	}
	if in.Description != "" {
		current.Description = in.Description
	}
	if in.Area > 0 {
		current.Area = in.Area
	}
	if v := strings.TrimSpace(in.AreaUnit); v != "" {
		current.AreaUnit = v
	}
	if in.MonthlyRent > 0 {
		current.MonthlyRent = in.MonthlyRent
	}
	if in.SoilType != "" {
		current.SoilType = in.SoilType
	}
	if in.WaterSource != "" {
		current.WaterSource = in.WaterSource
	}
	if in.AvailableFrom != "" {
		current.AvailableFrom = in.AvailableFrom
	}
	if in.AvailableTo != "" {
		current.AvailableTo = in.AvailableTo
	}
	if len(in.Coordinates) > 0 {
		current.Coordinates = in.Coordinates
	}

	updated, err := s.store.UpdateLand(ctx, current)
	if err != nil {
		return land.Land{}, err
	}
	s.log.WithField("land_id", landID).Info("land updated")
	return updated, nil
}

// PhotoURLs maps a parcel's photo keys to public URLs.
func (s *Service) PhotoURLs(l land.Land) []string {
	urls := make([]string, 0, len(l.PhotoKeys))
	for _, key := range l.PhotoKeys {
		urls = append(urls, s.objects.URL(key))
	}
	return urls
}

// ListAll returns every parcel, for the operator surface.
func (s *Service) ListAll(ctx context.Context) ([]land.Land, error) {
	return s.store.ListLands(ctx)
}
