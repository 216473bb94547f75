package writer

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"pkt.systems/ecrituria/schema"
)

// Draft is what the user filled in before asking for a preview.
type Draft struct {
	Action      schema.WriteAction `validate:"required,writeaction"`
	Instruction string             `validate:"notblank"`
	// Folder and Filename name the file to create.
	Folder   string `validate:"required_if=Action create"`
	Filename string `validate:"required_if=Action create"`
	// Target is "folder/file" of the existing file for other actions.
	Target       string `validate:"required_unless=Action create"`
	ContextFiles []string
}

// Path returns the file the draft writes to.
func (d Draft) Path() string {
	if d.Action == schema.WriteCreate {
		return strings.Trim(strings.TrimSpace(d.Folder), "/") + "/" + strings.TrimSpace(d.Filename)
	}
	return strings.TrimSpace(d.Target)
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func draftValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		_ = validate.RegisterValidation("writeaction", func(fl validator.FieldLevel) bool {
			return schema.WriteAction(fl.Field().String()).Valid()
		})
	})
	return validate
}

// Request validates d and returns the write request it describes.
func (d Draft) Request() (schema.WriteRequest, error) {
	if err := draftValidator().Struct(d); err != nil {
		return schema.WriteRequest{}, fmt.Errorf("%w: %s", schema.ErrInvalidWriteRequest, describe(err))
	}
	if (d.Action == schema.WriteCreate && (strings.TrimSpace(d.Folder) == "" || strings.TrimSpace(d.Filename) == "")) ||
		(d.Action != schema.WriteCreate && strings.TrimSpace(d.Target) == "") {
		return schema.WriteRequest{}, fmt.Errorf("%w: %s", schema.ErrInvalidWriteRequest, "file path is required")
	}
	path, err := schema.ParseFilePath(d.Path())
	if err != nil {
		return schema.WriteRequest{}, fmt.Errorf("%w: %w", schema.ErrInvalidWriteRequest, err)
	}
	files := d.ContextFiles
	if files == nil {
		files = []string{}
	}
	return schema.WriteRequest{
		Action:       d.Action,
		FilePath:     path.String(),
		Instruction:  strings.TrimSpace(d.Instruction),
		PreviewOnly:  true,
		ContextFiles: files,
	}, nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Field() {
	case "Action":
		if fe.Tag() == "required" {
			return "action is required"
		}
		return fmt.Sprintf("unknown action %q", fe.Value())
	case "Instruction":
		return "instruction is required"
	case "Folder", "Filename":
		return "folder and file name are required to create a file"
	case "Target":
		return "target file is required"
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}
