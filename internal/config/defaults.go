package config

// DefaultBlockedTerms are rejected before any model call: unsafe topics
// followed by clearly out-of-scope ones, in English and Arabic.
var DefaultBlockedTerms = []string{
	"bomb", "weapon", "kill", "attack", "hack", "exploit", "virus", "malware",
	"قنبلة", "سلاح", "اغتيال", "قرصنة", "فيروس",
	"recipe", "وصفة", "طبخ", "cooking",
	"football", "soccer", "كرة القدم",
	"movie", "فيلم", "مسلسل",
	"dating", "love", "relationship", "حب", "تعارف",
}

// DefaultDomainKeywords let a query skip the classifier
var DefaultDomainKeywords = []string{
	"jordan", "الأردن", "أردن",
	"رؤية", "vision", "2033", "2023",
	"اقتصاد", "economy", "economic",
	"استثمار", "investment", "invest",
	"قطاع عام", "public sector",
	"إصلاح", "reform",
	"حكومة", "government",
	"تحديث", "moderniz",
	"سياحة", "tourism",
	"نقل", "transport",
	"طاقة", "energy",
	"رقمي", "digital",
	"ريادة", "entrepreneurship",
	"تجارة", "trade",
	"صناعة", "industry",
	"شمول مالي", "financial inclusion", "fintech", "تكنولوجيا مالية",
	"مصرفي", "banking", "تمويل", "finance", "microfinance",
	"تحول رقمي", "digital transformation", "e-government", "حكومة إلكترونية",
	"أمن سيبراني", "cybersecurity", "بنية تحتية رقمية", "digital infrastructure",
	"تكنولوجيا غامرة", "immersive", "metaverse", "ميتافيرس",
	"واقع افتراضي", "virtual reality", "واقع معزز", "augmented reality",
	"ذكاء اصطناعي", "artificial intelligence",
	"سياحة بيئية", "ecotourism", "heritage", "تراث",
	"hospitality", "ضيافة", "green growth", "نمو أخضر",
	"نقل عام", "public transport", "logistics", "لوجستيات",
	"بنية تحتية", "infrastructure", "طرق", "roads", "railway", "سكك حديدية",
	"2025", "2026", "2028", "strategy", "استراتيجية", "خطة", "plan",
	"policy", "سياسة", "تنمية", "development",
}

// DefaultSafetyTerms must never appear in a returned answer
var DefaultSafetyTerms = []string{
	"bomb", "weapon", "kill", "attack", "hack",
	"قنبلة", "سلاح", "اغتيال", "قرصنة",
}
