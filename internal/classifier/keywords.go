package classifier

// keywordCategory is a predefined category's scoring definition.
type keywordCategory struct {
	Slug     string
	Keywords []string
}

// predefinedKeywords mirrors the category.keywords column for the build-time
// predefined category set; kept in code so the keyword pass needs no extra
// round trip to the store for the common case.
var predefinedKeywords = []keywordCategory{
	{Slug: "document-processing", Keywords: []string{"pdf", "docx", "spreadsheet", "excel", "document", "ocr", "form"}},
	{Slug: "data-analysis", Keywords: []string{"csv", "dataframe", "pandas", "analytics", "chart", "statistics", "dataset"}},
	{Slug: "web-automation", Keywords: []string{"browser", "scrape", "selenium", "playwright", "crawler", "html"}},
	{Slug: "devops", Keywords: []string{"docker", "kubernetes", "ci/cd", "terraform", "deploy", "pipeline", "infrastructure"}},
	{Slug: "api-integration", Keywords: []string{"api", "webhook", "rest", "graphql", "sdk", "oauth", "endpoint"}},
	{Slug: "writing", Keywords: []string{"writing", "editing", "copywriting", "grammar", "proofread", "summarize"}},
	{Slug: "code-generation", Keywords: []string{"codegen", "boilerplate", "scaffold", "generator", "template", "refactor"}},
	{Slug: "security", Keywords: []string{"security", "vulnerability", "cve", "auth", "encryption", "pentest"}},
	{Slug: "productivity", Keywords: []string{"calendar", "todo", "reminder", "notes", "task", "scheduling"}},
	{Slug: "research", Keywords: []string{"research", "citation", "literature", "paper", "search", "summarization"}},
}

// OtherCategory is the fallback slug when keyword scoring and suggestion
// both come up empty.
const OtherCategory = "other"
