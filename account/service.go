// Package account handles signup, login, onboarding and profile lookups.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"socialbox/models"
	"socialbox/repository"
	"socialbox/utils"
)

const (
	MinPasswordLength = 6
	// MaxPasswordLength is bcrypt's input limit in bytes.
	MaxPasswordLength = 72
	MaxFullNameLength = 100
	MaxEmailLength    = 255
	MaxBioLength      = 500
	MaxLocationLength = 100
	MinimumAge        = 18
	SearchLimit       = 20
	birthDateLayout   = "02-01-2006"
)

var genders = map[string]bool{"male": true, "female": true, "other": true}

type SignupInput struct {
	FullName string
	UserName string
	Email    string
	Password string
}

type LoginInput struct {
	EmailOrUserName string
	Password        string
}

type OnboardInput struct {
	UserName  string
	FullName  string
	Bio       string
	BirthDate string
	Gender    string
	Location  string
}

type Service struct {
	store      repository.Store
	bcryptCost int
	now        func() time.Time
}

func NewService(store repository.Store) *Service {
	return &Service{
		store:      store,
		bcryptCost: bcrypt.DefaultCost,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.UserName = strings.TrimSpace(in.UserName)
	in.Email = strings.TrimSpace(in.Email)

	if in.FullName == "" || in.UserName == "" || in.Email == "" || in.Password == "" {
		return nil, models.NewValidationError("All fields are required")
	}
	if !utils.ValidVar(in.FullName, "fullname") {
		return nil, models.NewValidationError("FullName must contain only letters")
	}
	if utf8.RuneCountInString(in.FullName) > MaxFullNameLength {
		return nil, models.NewValidationError(fmt.Sprintf("FullName must be at most %d characters long", MaxFullNameLength))
	}
	if !utils.ValidVar(in.UserName, "username") {
		return nil, models.NewValidationError("Invalid username. Use 3-30 chars: a-z, 0-9, ., _ only.")
	}
	if !utils.ValidVar(in.Email, "loose_email") {
		return nil, models.NewValidationError("Invalid email format")
	}
	if utf8.RuneCountInString(in.Email) > MaxEmailLength {
		return nil, models.NewValidationError(fmt.Sprintf("Email must be at most %d characters long", MaxEmailLength))
	}
	if len(in.Password) < MinPasswordLength {
		return nil, models.NewValidationError(fmt.Sprintf("Password must be at least %d characters long", MinPasswordLength))
	}
	if len(in.Password) > MaxPasswordLength {
		return nil, models.NewValidationError(fmt.Sprintf("Password must be at most %d bytes long", MaxPasswordLength))
	}

	if err := s.ensureUserNameFree(ctx, in.UserName, ""); err != nil {
		return nil, err
	}
	existing, err := s.store.Users().FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if existing != nil {
		return nil, models.NewConflictError(models.ErrCodeDuplicateUser, "Email already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := &models.User{
		ID:        uuid.New().String(),
		FullName:  in.FullName,
		UserName:  in.UserName,
		Email:     in.Email,
		Password:  string(hash),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, models.NewConflictError(models.ErrCodeDuplicateUser, "Username or email already exists")
		}
		return nil, err
	}
	return user, nil
}

// Login accepts either the email or the user name.
func (s *Service) Login(ctx context.Context, in LoginInput) (*models.User, error) {
	login := strings.TrimSpace(in.EmailOrUserName)
	if login == "" || in.Password == "" {
		return nil, models.NewValidationError("All fields are required")
	}

	user, err := s.store.Users().FindByLogin(ctx, login)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, models.NewUnauthorizedError("Invalid username or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)); err != nil {
		return nil, models.NewUnauthorizedError("Invalid username or password")
	}
	return user, nil
}

// Onboard completes the profile of userID and marks it onboarded.
func (s *Service) Onboard(ctx context.Context, userID string, in OnboardInput) (*models.User, error) {
	return s.saveProfile(ctx, userID, in, false)
}

// UpdateProfile edits the text profile of an onboarded user. Only the owner
// may edit it. The rules are the onboarding ones.
func (s *Service) UpdateProfile(ctx context.Context, actingUserID, userID string, in OnboardInput) (*models.User, error) {
	if actingUserID != userID {
		return nil, models.NewForbiddenError(models.ErrCodeNotProfileOwner, "You are not authorized to update this profile")
	}
	return s.saveProfile(ctx, userID, in, true)
}

func (s *Service) saveProfile(ctx context.Context, userID string, in OnboardInput, mustBeOnboarded bool) (*models.User, error) {
	in.UserName = strings.TrimSpace(in.UserName)
	in.FullName = strings.TrimSpace(in.FullName)
	in.BirthDate = strings.TrimSpace(in.BirthDate)
	in.Gender = strings.TrimSpace(in.Gender)

	var missing []string
	for _, f := range []struct{ name, value string }{
		{"userName", in.UserName},
		{"fullName", in.FullName},
		{"birthDate", in.BirthDate},
		{"gender", in.Gender},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return nil, models.NewValidationError("Missing fields: " + strings.Join(missing, ", "))
	}
	if !utils.ValidVar(in.UserName, "username") {
		return nil, models.NewValidationError("Invalid username. Use 3-30 chars: a-z, 0-9, ., _ only.")
	}

	user, err := s.store.Users().FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, models.NewUserNotFoundError("")
	}
	if mustBeOnboarded && !user.IsOnboarded {
		return nil, models.NewValidationError("Complete onboarding before updating your profile")
	}
	if user.UserName != in.UserName {
		if err := s.ensureUserNameFree(ctx, in.UserName, userID); err != nil {
			return nil, err
		}
	}

	if !utils.ValidVar(in.FullName, "fullname") {
		return nil, models.NewValidationError("FullName must contain only letters")
	}
	if utf8.RuneCountInString(in.FullName) > MaxFullNameLength {
		return nil, models.NewValidationError(fmt.Sprintf("FullName must be at most %d characters long", MaxFullNameLength))
	}
	if err := checkBirthDate(in.BirthDate, s.now()); err != nil {
		return nil, err
	}
	if !genders[in.Gender] {
		return nil, models.NewValidationError("Invalid gender. Please choose 'male', 'female', or 'other'.")
	}
	in.Bio = strings.TrimSpace(in.Bio)
	in.Location = strings.TrimSpace(in.Location)
	if utf8.RuneCountInString(in.Bio) > MaxBioLength {
		return nil, models.NewValidationError(fmt.Sprintf("Bio must be at most %d characters long", MaxBioLength))
	}
	if utf8.RuneCountInString(in.Location) > MaxLocationLength {
		return nil, models.NewValidationError(fmt.Sprintf("Location must be at most %d characters long", MaxLocationLength))
	}

	profile := models.OnboardingProfile{
		UserName:  in.UserName,
		FullName:  in.FullName,
		Bio:       in.Bio,
		BirthDate: in.BirthDate,
		Gender:    in.Gender,
		Location:  in.Location,
	}
	if err := s.store.Users().UpdateOnboarding(ctx, userID, profile, s.now()); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, models.NewConflictError(models.ErrCodeDuplicateUser, "Username already exists")
		}
		return nil, err
	}
	return s.store.Users().FindByID(ctx, userID)
}

func checkBirthDate(value string, now time.Time) error {
	if !utils.ValidVar(value, "birthdate") {
		return models.NewValidationError("Invalid birth date format. Please use DD-MM-YYYY.")
	}
	// time.Parse rejects days that do not exist in the month, leap years included.
	dob, err := time.Parse(birthDateLayout, value)
	if err != nil {
		return models.NewValidationError("Invalid birth date. Please enter a valid date.")
	}
	if ageOn(dob, now) < MinimumAge {
		return models.NewValidationError(fmt.Sprintf("User must be at least %d years old", MinimumAge))
	}
	return nil
}

func ageOn(dob, now time.Time) int {
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age
}

func (s *Service) ensureUserNameFree(ctx context.Context, userName, ownerID string) error {
	existing, err := s.store.Users().FindByUserName(ctx, userName)
	if err != nil {
		return fmt.Errorf("check user name: %w", err)
	}
	if existing != nil && existing.ID != ownerID {
		return models.NewConflictError(models.ErrCodeDuplicateUser, "Username already exists")
	}
	return nil
}

// CurrentUser returns userID with its followers and following resolved to
// public profiles.
func (s *Service) CurrentUser(ctx context.Context, userID string) (*models.UserWithRelations, error) {
	user, err := s.store.Users().FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, models.NewUserNotFoundError("")
	}
	return s.withRelations(ctx, user)
}

// ProfileByUserName looks up an onboarded user.
func (s *Service) ProfileByUserName(ctx context.Context, userName string) (*models.UserWithRelations, error) {
	user, err := s.store.Users().FindByUserName(ctx, userName)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil || !user.IsOnboarded {
		return nil, models.NewUserNotFoundError("")
	}
	return s.withRelations(ctx, user)
}

func (s *Service) withRelations(ctx context.Context, user *models.User) (*models.UserWithRelations, error) {
	followerIDs, err := s.store.Follows().FollowerIDs(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	followingIDs, err := s.store.Follows().FollowingIDs(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	followers, err := s.store.Users().PublicProfiles(ctx, followerIDs)
	if err != nil {
		return nil, err
	}
	following, err := s.store.Users().PublicProfiles(ctx, followingIDs)
	if err != nil {
		return nil, err
	}
	return &models.UserWithRelations{User: *user, Followers: followers, Following: following}, nil
}

// Search matches onboarded users by user name or full name.
func (s *Service) Search(ctx context.Context, query string) ([]models.PublicProfile, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, models.NewValidationError("Search query is required")
	}
	return s.store.Users().Search(ctx, query, SearchLimit)
}
