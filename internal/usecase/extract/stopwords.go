package extract

// stopwords are dropped from keyword extraction. Analytical verbs are listed
// too: they steer classification and carry no record content. Field nouns
// name a filter rather than a value.
var stopwords = map[string]struct{}{
	"about": {}, "above": {}, "across": {}, "after": {}, "again": {}, "against": {},
	"also": {}, "audit": {}, "audits": {}, "based": {}, "been": {}, "before": {},
	"being": {}, "below": {}, "between": {}, "both": {}, "cause": {}, "causes": {},
	"could": {}, "count": {}, "current": {}, "days": {}, "display": {}, "does": {},
	"doing": {}, "during": {}, "each": {}, "every": {}, "fetch": {}, "find": {},
	"finding": {}, "findings": {}, "from": {}, "give": {}, "have": {}, "having": {},
	"here": {}, "into": {}, "issue": {}, "issues": {}, "item": {}, "items": {},
	"just": {}, "last": {}, "list": {}, "many": {}, "more": {}, "most": {},
	"much": {}, "number": {}, "only": {}, "other": {}, "over": {}, "past": {},
	"please": {}, "record": {}, "records": {}, "same": {}, "should": {}, "show": {},
	"since": {}, "some": {}, "such": {}, "than": {}, "that": {}, "their": {},
	"them": {}, "then": {}, "there": {}, "these": {}, "they": {}, "this": {},
	"those": {}, "through": {}, "total": {}, "under": {}, "until": {}, "very": {},
	"view": {}, "weeks": {}, "were": {}, "what": {}, "when": {}, "where": {},
	"which": {}, "while": {}, "with": {}, "within": {}, "would": {}, "year": {},
	"years": {}, "months": {}, "your": {}, "tell": {}, "want": {}, "need": {},

	"category": {}, "categories": {}, "department": {}, "departments": {},
	"severity": {}, "severities": {}, "status": {}, "statuses": {}, "level": {},
	"levels": {}, "dept": {}, "team": {}, "teams": {}, "area": {}, "areas": {},

	"analyse": {}, "analysis": {}, "analyze": {}, "assess": {}, "assessment": {},
	"compare": {}, "comparison": {}, "correlate": {}, "describe": {}, "evaluate": {},
	"explain": {}, "improve": {}, "insight": {}, "insights": {}, "overview": {},
	"pattern": {}, "patterns": {}, "predict": {}, "priorities": {}, "prioritise": {},
	"prioritize": {}, "priority": {}, "recommend": {}, "recommendation": {},
	"recommendations": {}, "root": {}, "summarise": {}, "summarize": {}, "summary": {},
	"trend": {}, "trends": {},
}

func isStopword(w string) bool {
	_, ok := stopwords[w]
	return ok
}
