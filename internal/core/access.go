package core

import "github.com/watchsec/commnode/internal/model"

// Admits reports whether a credential holding level may invoke an operation
// that requires required. Lower levels are broader: the comparison is the
// literal level <= required, so a level 0 key also passes level 1 and level 2
// checks even though the levels name disjoint roles.
func Admits(level, required int) bool {
	return level <= required
}

// AccessRight describes what an access level is meant to be used for.
type AccessRight struct {
	Level       int
	Description string
}

// AccessRights is the level table printed when keys are generated.
var AccessRights = []AccessRight{
	{Level: model.LevelBusinessAdmin, Description: "create businesses, manage employees, read all data"},
	{Level: model.LevelProvisioning, Description: "register devices, read business and device data"},
	{Level: model.LevelDevice, Description: "send alerts, malfunctions and logs"},
}
