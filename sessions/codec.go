package sessions

import (
	"encoding/json"

	interrors "github.com/jrsteele09/tramcan-session/internal/errors"
	"github.com/pkg/errors"
)

// SchemaVersion is written into every persisted blob.
const SchemaVersion = 1

type envelope struct {
	V    int             `json:"v"`
	Data json.RawMessage `json:"data"`
}

// tenantInfoRecord keeps the identity, the station and the token scoping
// that station in one blob so they can never be persisted apart.
type tenantInfoRecord struct {
	TenantInfo
	SessionToken string `json:"sessionToken,omitempty"`
}

func encodeBlob(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", errors.Wrap(err, "[encodeBlob] marshal")
	}
	out, err := json.Marshal(envelope{V: SchemaVersion, Data: data})
	if err != nil {
		return "", errors.Wrap(err, "[encodeBlob] marshal envelope")
	}
	return string(out), nil
}

// decodeBlob unmarshals raw into out. Blobs written before versioning
// (a bare object) are read as version 0, which has the same field layout.
func decodeBlob(raw string, out any) (version int, err error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &probe); err != nil {
		return 0, errors.Wrap(interrors.ErrCorruptBlob, err.Error())
	}

	payload := []byte(raw)
	rawV, hasV := probe["v"]
	rawData, hasData := probe["data"]
	if hasV && hasData {
		if err := json.Unmarshal(rawV, &version); err != nil {
			return 0, errors.Wrap(interrors.ErrCorruptBlob, "bad version field")
		}
		if version > SchemaVersion || version < 0 {
			return version, errors.Wrapf(interrors.ErrUnsupportedSchema, "version %d", version)
		}
		payload = rawData
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return version, errors.Wrap(interrors.ErrCorruptBlob, err.Error())
	}
	return version, nil
}
