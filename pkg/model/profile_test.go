package model_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alokranjan04/admin-voice-agent/pkg/model"
	"github.com/m-mizutani/gt"
)

func writeProfile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	gt.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadProfiles(t *testing.T) {
	path := writeProfile(t, `
default: downtown
profiles:
  downtown:
    business_name: Downtown Dental
    hours: "9:00 AM - 5:00 PM"
    days: [Monday, Tuesday, Wednesday, Thursday, Friday]
    timezone: America/New_York
    services: [cleaning, checkup]
  uptown:
    business_name: Uptown Dental
    slot_minutes: 30
    calendar_id: uptown@example.com
`)

	profiles, err := model.LoadProfiles(path)
	gt.NoError(t, err)
	gt.A(t, profiles.Names()).Length(2)

	p, err := profiles.Resolve("")
	gt.NoError(t, err)
	gt.Equal(t, p.Name, "downtown")
	gt.Equal(t, p.BusinessName, "Downtown Dental")
	gt.Equal(t, p.SlotMinutes, 60)
	gt.Equal(t, p.CalendarID, "primary")

	p, err = profiles.Resolve("uptown")
	gt.NoError(t, err)
	gt.Equal(t, p.SlotMinutes, 30)
	gt.Equal(t, p.CalendarID, "uptown@example.com")

	_, err = profiles.Resolve("nowhere")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrProfileNotFound))
}

func TestLoadProfilesSingleWithoutDefault(t *testing.T) {
	path := writeProfile(t, `
profiles:
  only:
    business_name: Solo Studio
`)

	profiles, err := model.LoadProfiles(path)
	gt.NoError(t, err)

	p, err := profiles.Resolve("")
	gt.NoError(t, err)
	gt.Equal(t, p.Name, "only")
}

func TestLoadProfilesEmpty(t *testing.T) {
	path := writeProfile(t, "profiles: {}\n")
	_, err := model.LoadProfiles(path)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrConfiguration))
}

func TestLoadProfilesBuiltinDefault(t *testing.T) {
	profiles, err := model.LoadProfiles("")
	gt.NoError(t, err)

	p, err := profiles.Resolve("")
	gt.NoError(t, err)
	gt.Equal(t, p.Name, model.DefaultProfileName)
}

func TestAuthContextValidate(t *testing.T) {
	gt.NoError(t, model.AuthContext{}.Validate())
	gt.NoError(t, model.AuthContext{AccessToken: "tok"}.Validate())

	err := model.AuthContext{RefreshToken: "r"}.Validate()
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrConfiguration))

	gt.NoError(t, model.AuthContext{RefreshToken: "r", ClientID: "id", ClientSecret: "s"}.Validate())
	gt.True(t, model.AuthContext{RefreshToken: "r"}.UserToken())
	gt.False(t, model.AuthContext{CredentialsFile: "sa.json"}.UserToken())
}
