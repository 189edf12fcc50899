package questionnaire

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/canvass/internal/errors"
)

// LoadFile reads a questionnaire definition from a YAML or JSON file and
// validates it.
func LoadFile(path string) (*Questionnaire, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFoundError(path)
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, "read questionnaire", err)
	}

	var qn Questionnaire
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &qn); err != nil {
			return nil, errors.NewFileUnmarshalError(path, "JSON", err)
		}
	default:
		if err := yaml.Unmarshal(data, &qn); err != nil {
			return nil, errors.NewFileUnmarshalError(path, "YAML", err)
		}
	}

	if err := qn.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQuestionnaireInvalid, "invalid questionnaire "+path, err)
	}
	return &qn, nil
}
