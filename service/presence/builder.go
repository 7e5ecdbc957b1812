package presence

import (
	"errors"

	"github.com/bwmarrin/discordgo"
	"github.com/go-playground/validator/v10"
	"github.com/teal-fm/beacon/models"
)

// Activity is the presence payload sent upstream. Tags are camelCase; the
// client rewrites them to the wire convention.
type Activity struct {
	ApplicationID string                 `json:"applicationId,omitempty"`
	Name          string                 `json:"name" validate:"required,max=128"`
	Type          discordgo.ActivityType `json:"type" validate:"gte=0,lte=5"`
	Platform      string                 `json:"platform,omitempty" validate:"omitempty,oneof=desktop ios android"`
	State         string                 `json:"state,omitempty" validate:"max=128"`
	Details       string                 `json:"details,omitempty" validate:"max=128"`
	Assets        *Assets                `json:"assets,omitempty"`
	Buttons       []Button               `json:"buttons,omitempty" validate:"max=2,dive"`
}

// Assets holds image keys and their hover texts
type Assets struct {
	LargeImage string `json:"largeImage,omitempty"`
	LargeText  string `json:"largeText,omitempty"`
	SmallImage string `json:"smallImage,omitempty"`
	SmallText  string `json:"smallText,omitempty"`
}

// Button is a link shown under the presence
type Button struct {
	Label string `json:"label" validate:"required,max=32"`
	URL   string `json:"url" validate:"required,url"`
}

var activityCodes = map[models.ActivityKind]discordgo.ActivityType{
	models.ActivityPlaying:   discordgo.ActivityTypeGame,
	models.ActivityStreaming: discordgo.ActivityTypeStreaming,
	models.ActivityListening: discordgo.ActivityTypeListening,
	models.ActivityWatching:  discordgo.ActivityTypeWatching,
	models.ActivityCustom:    discordgo.ActivityTypeCustom,
	models.ActivityCompeting: discordgo.ActivityTypeCompeting,
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ActivityCode maps a stored kind to its wire code. Unknown or unset kinds are Playing.
func ActivityCode(kind models.ActivityKind) discordgo.ActivityType {
	if code, ok := activityCodes[kind]; ok {
		return code
	}
	return discordgo.ActivityTypeGame
}

// BuildActivity derives the presence payload from a user's stored settings.
// It performs no I/O.
func BuildActivity(user *models.User) (*Activity, error) {
	name := value(user.Name)
	if name == "" {
		return nil, ErrMissingName
	}

	activity := &Activity{
		Name:    name,
		Type:    ActivityCode(user.Type),
		State:   value(user.State),
		Details: value(user.Details),
	}

	if user.Platform != nil {
		activity.Platform = string(*user.Platform)
	}

	largeImage, smallImage := value(user.LargeImage), value(user.SmallImage)
	if largeImage != "" || smallImage != "" {
		activity.Assets = &Assets{
			LargeImage: largeImage,
			LargeText:  value(user.LargeText),
			SmallImage: smallImage,
			SmallText:  value(user.SmallText),
		}
	}

	for _, b := range [][2]*string{
		{user.Button1Text, user.Button1URL},
		{user.Button2Text, user.Button2URL},
	} {
		label, url := value(b[0]), value(b[1])
		if label != "" && url != "" {
			activity.Buttons = append(activity.Buttons, Button{Label: label, URL: url})
		}
	}

	if err := validate.Struct(activity); err != nil {
		return nil, toConfigError(err)
	}

	return activity, nil
}

func toConfigError(err error) *ConfigError {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &ConfigError{Field: fe.Namespace(), Reason: "failed " + fe.Tag() + " check"}
	}
	return &ConfigError{Field: "activity", Reason: err.Error()}
}

func value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
