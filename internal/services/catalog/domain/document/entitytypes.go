package document

// Entity types that count usage through clip fields rather than annotations.
var clipOnlyEntityTypes = map[string]bool{
	"Collection": true,
	"Platform":   true,
}

// Entity types whose usage also counts annotation roles.
var roleEntityTypes = map[string]bool{
	"VClipContributorRole": true,
}

var entityTypes = map[string]bool{}

func init() {
	for _, name := range []string{
		"AnySound", "Broadcaster", "BroadcastSeries", "Collection", "CollectiveIdentity",
		"CreativeWork", "Event", "EventSeries", "FictionalCharacter", "Genre", "Group",
		"Location", "Movement", "Organization", "Person", "PieceOfMusic", "Place", "Platform",
		"Repertoire", "Status", "Tape", "Thing", "TimePeriod", "Topic", "Topos", "VActivity",
		"VClipContributorRole", "VClipType", "VLanguage", "Volume", "Pitch", "Timbre", "OnSite",
		"Diegetic", "Container", "PartM", "GenreM", "TempoM", "RhythmM", "InstrumentationM",
		"InstrumentM", "ArticulationM", "DynamicsM", "TempoSp", "RhythmSp", "PausesSp",
		"DialectSp", "SociolectSp", "AccentSp", "PronounSp", "AdressSp", "SpeechformSp",
		"AffectSp", "TechnicalAestheticSo",
	} {
		entityTypes[name] = true
	}
}

// IsEntityType reports whether name is a known entity type.
func IsEntityType(name string) bool { return entityTypes[name] }

// CountsClipUsage reports whether usage of this entity type is counted from
// clip fields (platform, language, collections) instead of annotations.
func CountsClipUsage(entityType string) bool { return clipOnlyEntityTypes[entityType] }

// CountsRoleUsage reports whether annotation roles count toward usage.
func CountsRoleUsage(entityType string) bool { return roleEntityTypes[entityType] }

// TopicType is the only entity type carrying analysis categories.
const TopicType = "Topic"

var analysisCategories = map[string]bool{
	"AAbstractOther": true, "AAesthetics": true, "ACulturalPractice": true, "AEconomy": true,
	"AGender": true, "AIdentity": true, "AMedia": true, "AMemory": true,
	"APastPresentFuture": true, "APolitics": true, "ASciencesHumanities": true,
}

// IsAnalysisCategory reports whether name is a known analysis category.
func IsAnalysisCategory(name string) bool { return analysisCategories[name] }
