package tags

import "github.com/yohamta/donburi"

var (
	Character = donburi.NewTag().SetName("Character")
	NPC       = donburi.NewTag().SetName("NPC")
	Prop      = donburi.NewTag().SetName("Prop")
	Platform  = donburi.NewTag().SetName("Platform")
	// Local marks entities this peer is the authority for.
	Local = donburi.NewTag().SetName("Local")
)
