package skill

import (
	"github.com/nidhogg/skillgate/internal/access"
	"go.uber.org/zap"
)

// DecodeRequirements parses stored requirement JSON. A malformed value is
// logged and treated as no requirements so one bad row never breaks a listing.
func DecodeRequirements(raw []byte, slug string, logger *zap.Logger) access.Requirements {
	reqs, err := access.ParseRequirements(raw)
	if err != nil {
		logger.Warn("malformed skill requirements, treating as none",
			zap.String("slug", slug), zap.Error(err))
		return access.Requirements{}
	}
	return reqs
}
