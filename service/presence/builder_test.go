package presence

import (
	"errors"
	"reflect"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/teal-fm/beacon/models"
)

func strPtr(s string) *string { return &s }

func TestBuildActivityMissingName(t *testing.T) {
	testCases := []struct {
		name string
		user *models.User
	}{
		{name: "nil name", user: &models.User{Enabled: true}},
		{name: "empty name", user: &models.User{Enabled: true, Name: strPtr("")}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := BuildActivity(tc.user)
			if !errors.Is(err, ErrMissingName) {
				t.Errorf("Expected ErrMissingName, got %v", err)
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Errorf("Expected a ConfigError, got %T", err)
			}
		})
	}
}

func TestActivityCode(t *testing.T) {
	testCases := []struct {
		kind     models.ActivityKind
		expected discordgo.ActivityType
	}{
		{models.ActivityPlaying, 0},
		{models.ActivityStreaming, 1},
		{models.ActivityListening, 2},
		{models.ActivityWatching, 3},
		{models.ActivityCustom, 4},
		{models.ActivityCompeting, 5},
		{"", 0},
		{"Dancing", 0},
	}

	for _, tc := range testCases {
		t.Run(string(tc.kind), func(t *testing.T) {
			if got := ActivityCode(tc.kind); got != tc.expected {
				t.Errorf("Expected %d, got %d", tc.expected, got)
			}
		})
	}
}

func TestBuildActivityMinimal(t *testing.T) {
	activity, err := BuildActivity(&models.User{Name: strPtr("VS Code")})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if activity.Name != "VS Code" {
		t.Errorf("Expected name 'VS Code', got %s", activity.Name)
	}
	if activity.Type != discordgo.ActivityTypeGame {
		t.Errorf("Expected unset type to default to Playing, got %d", activity.Type)
	}
	if activity.Assets != nil {
		t.Errorf("Expected no assets block, got %+v", activity.Assets)
	}
	if activity.Platform != "" {
		t.Errorf("Expected no platform, got %s", activity.Platform)
	}
	if activity.Buttons != nil {
		t.Errorf("Expected no buttons, got %+v", activity.Buttons)
	}
}

func TestBuildActivityAssets(t *testing.T) {
	t.Run("small text without images is dropped", func(t *testing.T) {
		activity, err := BuildActivity(&models.User{
			Name:      strPtr("Game"),
			SmallText: strPtr("hover"),
			LargeText: strPtr("large hover"),
		})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if activity.Assets != nil {
			t.Errorf("Expected assets to be omitted, got %+v", activity.Assets)
		}
	})

	t.Run("small image only", func(t *testing.T) {
		activity, err := BuildActivity(&models.User{
			Name:       strPtr("Game"),
			SmallImage: strPtr("small"),
			SmallText:  strPtr("hover"),
		})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		expected := &Assets{SmallImage: "small", SmallText: "hover"}
		if !reflect.DeepEqual(activity.Assets, expected) {
			t.Errorf("Expected %+v, got %+v", expected, activity.Assets)
		}
	})

	t.Run("large image with texts", func(t *testing.T) {
		activity, err := BuildActivity(&models.User{
			Name:       strPtr("Game"),
			LargeImage: strPtr("large"),
			LargeText:  strPtr("big hover"),
			SmallText:  strPtr("hover"),
		})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		expected := &Assets{LargeImage: "large", LargeText: "big hover", SmallText: "hover"}
		if !reflect.DeepEqual(activity.Assets, expected) {
			t.Errorf("Expected %+v, got %+v", expected, activity.Assets)
		}
	})
}

func TestBuildActivityFull(t *testing.T) {
	platform := models.PlatformAndroid
	user := &models.User{
		Name:        strPtr("Minecraft"),
		Type:        models.ActivityCompeting,
		Platform:    &platform,
		State:       strPtr("In a match"),
		Details:     strPtr("Ranked"),
		Button1Text: strPtr("Watch"),
		Button1URL:  strPtr("https://example.com/watch"),
		Button2Text: strPtr("Label without url"),
	}

	activity, err := BuildActivity(user)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if activity.Type != discordgo.ActivityTypeCompeting {
		t.Errorf("Expected Competing, got %d", activity.Type)
	}
	if activity.Platform != "android" {
		t.Errorf("Expected android, got %s", activity.Platform)
	}
	if activity.State != "In a match" || activity.Details != "Ranked" {
		t.Errorf("State/details not set: %+v", activity)
	}
	if len(activity.Buttons) != 1 || activity.Buttons[0].URL != "https://example.com/watch" {
		t.Errorf("Expected exactly the complete button, got %+v", activity.Buttons)
	}
}

func TestBuildActivityInvalidButtonURL(t *testing.T) {
	_, err := BuildActivity(&models.User{
		Name:        strPtr("Game"),
		Button1Text: strPtr("Broken"),
		Button1URL:  strPtr("not a url"),
	})

	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Expected ConfigError, got %v", err)
	}
	if errors.Is(err, ErrMissingName) {
		t.Error("Invalid button must not be reported as a missing name")
	}
}

func TestBuildActivityIsPure(t *testing.T) {
	user := &models.User{
		Name:       strPtr("VS Code"),
		Type:       models.ActivityListening,
		LargeImage: strPtr("code"),
		State:      strPtr("Editing"),
	}

	first, err := BuildActivity(user)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	second, err := BuildActivity(user)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Expected identical payloads, got %+v and %+v", first, second)
	}
	if first == second {
		t.Error("Expected a fresh payload per call")
	}
}
