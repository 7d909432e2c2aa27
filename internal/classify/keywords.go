package classify

import "github.com/cairnhq/cairn/pkg/models"

// DefaultDomains maps each known domain to its keyword vocabulary.
// Scores are normalized by vocabulary size, so domains with richer
// vocabularies are not favored.
var DefaultDomains = map[string][]string{
	"frontend": {
		"ui",
		"frontend",
		"component",
		"page",
		"form",
		"button",
		"layout",
		"css",
		"styling",
		"responsive",
	},
	"backend": {
		"api",
		"endpoint",
		"server",
		"service",
		"backend",
		"handler",
		"middleware",
		"queue",
		"worker",
		"cron",
	},
	"database": {
		"database",
		"schema",
		"migration",
		"sql",
		"query",
		"index",
		"table",
		"orm",
		"postgres",
		"sqlite",
	},
	"auth": {
		"auth",
		"authentication",
		"authorization",
		"login",
		"session",
		"token",
		"oauth",
		"permission",
		"role",
	},
	"infra": {
		"deploy",
		"deployment",
		"docker",
		"kubernetes",
		"ci/cd",
		"pipeline",
		"terraform",
		"infra",
		"infrastructure",
		"monitoring",
	},
	"testing": {
		"test",
		"tests",
		"testing",
		"coverage",
		"fixture",
		"regression",
		"e2e",
		"integration test",
	},
	"docs": {
		"docs",
		"documentation",
		"readme",
		"changelog",
		"guide",
		"tutorial",
	},
	"mobile": {
		"mobile",
		"ios",
		"android",
		"app store",
		"push notification",
	},
}

// DefaultIntentPatterns maps each intent to the phrases that signal it.
// The intent with the most pattern hits wins; build is the default.
var DefaultIntentPatterns = map[models.Intent][]string{
	models.IntentBuild: {
		"build",
		"create",
		"add",
		"implement",
		"new",
		"develop",
		"introduce",
	},
	models.IntentModify: {
		"modify",
		"change",
		"update",
		"adjust",
		"extend",
		"rename",
	},
	models.IntentRefactor: {
		"refactor",
		"restructure",
		"clean up",
		"cleanup",
		"reorganize",
		"simplify",
		"extract",
	},
	models.IntentMigrate: {
		"migrate",
		"migration",
		"port",
		"upgrade to",
		"move to",
		"switch to",
		"convert to",
	},
	models.IntentOptimize: {
		"optimize",
		"speed up",
		"performance",
		"faster",
		"reduce latency",
		"cache",
		"profil",
	},
}

// DefaultTechnologies are the technology names the prompt parser looks
// for when filling ParsedPrompt.Technologies.
var DefaultTechnologies = []string{
	"go",
	"golang",
	"typescript",
	"javascript",
	"python",
	"react",
	"vue",
	"postgres",
	"postgresql",
	"mysql",
	"sqlite",
	"redis",
	"kafka",
	"grpc",
	"graphql",
	"rest",
	"docker",
	"kubernetes",
	"aws",
	"gcp",
	"terraform",
	"stripe",
	"oauth",
	"websocket",
}

// intentOrder fixes the tie-break order for intent detection. Earlier
// entries win ties, so build beats everything at equal hit counts.
var intentOrder = []models.Intent{
	models.IntentBuild,
	models.IntentModify,
	models.IntentRefactor,
	models.IntentMigrate,
	models.IntentOptimize,
}
