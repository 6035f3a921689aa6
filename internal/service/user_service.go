package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"habersin/internal/contentfilter"
	"habersin/internal/models"
	"habersin/internal/repository"
)

const (
	MaxNameLength        = 50
	MsgNameProfanity     = "Names cannot contain inappropriate language"
	MsgUnknownSocialLink = "Unknown social link %q"
)

type UserService struct {
	store          repository.DocumentStore
	matcher        *contentfilter.ProfanityMatcher
	photoValidator *contentfilter.ImageValidator
	images         *ImageUploader
}

func NewUserService(
	store repository.DocumentStore,
	matcher *contentfilter.ProfanityMatcher,
	photoValidator *contentfilter.ImageValidator,
	images *ImageUploader,
) *UserService {
	return &UserService{
		store:          store,
		matcher:        matcher,
		photoValidator: photoValidator,
		images:         images,
	}
}

// Get returns a user profile.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	return s.store.Users().GetByID(ctx, id)
}

// Ensure returns the caller's profile, creating an empty one on first use.
// Accounts are issued elsewhere; the token subject is the user id.
func (s *UserService) Ensure(ctx context.Context, id string) (*models.User, error) {
	if id == "" {
		return nil, models.NewUnauthorizedError("Sign in required")
	}
	u, err := s.store.Users().GetByID(ctx, id)
	if err == nil {
		return u, nil
	}
	if !models.IsCode(err, models.CodeNotFound) {
		return nil, err
	}
	u = &models.User{ID: id}
	if err := s.store.Users().Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// UpdateProfileInput holds optional profile fields; nil leaves a field as is.
type UpdateProfileInput struct {
	FirstName   *string           `json:"first_name"`
	LastName    *string           `json:"last_name"`
	DisplayName *string           `json:"display_name"`
	SocialLinks map[string]string `json:"social_links"`
}

// UpdateProfile changes names and social links. Only the twitter, facebook,
// instagram and linkedin links exist.
func (s *UserService) UpdateProfile(ctx context.Context, id string, in UpdateProfileInput) (*models.User, error) {
	u, err := s.Ensure(ctx, id)
	if err != nil {
		return nil, err
	}

	var columns []string
	for _, f := range []struct {
		value  *string
		target *string
		column string
	}{
		{in.FirstName, &u.FirstName, "first_name"},
		{in.LastName, &u.LastName, "last_name"},
		{in.DisplayName, &u.DisplayName, "display_name"},
	} {
		if f.value == nil {
			continue
		}
		v := strings.TrimSpace(*f.value)
		if utf8.RuneCountInString(v) > MaxNameLength {
			return nil, models.NewValidationError(fmt.Sprintf("%s is too long (max %d characters)", strings.ReplaceAll(f.column, "_", " "), MaxNameLength))
		}
		if s.matcher.ContainsProfanity(v) {
			return nil, models.NewValidationError(MsgNameProfanity)
		}
		*f.target = v
		columns = append(columns, f.column)
	}

	if in.SocialLinks != nil {
		links := u.SocialLinks
		for key, value := range in.SocialLinks {
			value = strings.TrimSpace(value)
			switch strings.ToLower(key) {
			case "twitter":
				links.Twitter = value
			case "facebook":
				links.Facebook = value
			case "instagram":
				links.Instagram = value
			case "linkedin":
				links.LinkedIn = value
			default:
				return nil, models.NewValidationError(fmt.Sprintf(MsgUnknownSocialLink, key))
			}
		}
		u.SocialLinks = links
		columns = append(columns, "social_links")
	}

	if len(columns) == 0 {
		return u, nil
	}
	if err := s.store.Users().Update(ctx, u, columns...); err != nil {
		return nil, err
	}
	return u, nil
}

// UploadPhoto validates and stores a profile photo, replacing the old one.
func (s *UserService) UploadPhoto(ctx context.Context, id string, file contentfilter.ImageFile) (*models.User, error) {
	u, err := s.Ensure(ctx, id)
	if err != nil {
		return nil, err
	}
	img, err := s.photoValidator.Validate(file)
	if err != nil {
		return nil, err
	}
	h, err := s.images.UploadMaster(ctx, ProfilePhotoPrefix, img)
	if err != nil {
		return nil, err
	}

	oldKey := u.PhotoKey
	u.PhotoURL = h.URL
	u.PhotoKey = h.Key
	if err := s.store.Users().Update(ctx, u, "photo_url", "photo_key"); err != nil {
		s.images.Cleanup(ctx, h)
		return nil, err
	}
	s.images.CleanupKeys(ctx, oldKey)
	return u, nil
}
