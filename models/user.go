package models

import "time"

type User struct {
	ID          string    `json:"id"`
	FullName    string    `json:"fullName"`
	UserName    string    `json:"userName"`
	Email       string    `json:"email"`
	Password    string    `json:"-"`
	Bio         string    `json:"bio"`
	ProfilePic  string    `json:"profilePic"`
	BirthDate   string    `json:"birthDate"`
	Gender      string    `json:"gender"`
	Location    string    `json:"location"`
	IsOnboarded bool      `json:"isOnboarded"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// PublicProfile is the subset of a user that other users may see.
type PublicProfile struct {
	ID         string `json:"id"`
	UserName   string `json:"userName"`
	FullName   string `json:"fullName"`
	ProfilePic string `json:"profilePic"`
}

// UserWithRelations is a user together with the profiles of the users on
// both sides of its follow relationships.
type UserWithRelations struct {
	User
	Followers []PublicProfile `json:"followers"`
	Following []PublicProfile `json:"following"`
}

// OnboardingProfile carries the fields a user fills in to complete onboarding.
type OnboardingProfile struct {
	UserName  string
	FullName  string
	Bio       string
	BirthDate string
	Gender    string
	Location  string
}

func (u *User) ToPublic() PublicProfile {
	return PublicProfile{
		ID:         u.ID,
		UserName:   u.UserName,
		FullName:   u.FullName,
		ProfilePic: u.ProfilePic,
	}
}
