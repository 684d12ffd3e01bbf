package classify

// Keyword tables for the rule classifier. Single words match on word
// boundaries, phrases as substrings (see matchKeywords).

// hinglishLexicon holds common romanized-Hindi tokens. One match is enough to
// call the message Hinglish.
var hinglishLexicon = map[string]bool{
	"namaste": true, "namaskar": true, "namaskara": true, "ji": true,
	"jai": true, "radhe": true,
	"kya": true, "hai": true, "hain": true, "mujhe": true, "chahiye": true,
	"acha": true, "theek": true, "nahi": true, "haan": true,
	"kaise": true, "kab": true, "kahan": true, "kyun": true, "koi": true,
	"bhi": true, "kar": true, "ho": true,
	"aap": true, "aapka": true, "mera": true, "mere": true, "tumhara": true,
	"uska": true, "yeh": true, "woh": true, "iska": true,
	"batao": true, "bataiye": true, "samjhao": true, "samjhiye": true,
	"dikha": true, "dikhao": true, "milega": true, "milta": true,
	"chahta": true, "chahti": true, "samajh": true, "pata": true,
	"malum": true, "thik": true, "sahi": true, "galat": true,
	"achha": true, "zaroor": true, "bilkul": true, "bahut": true,
	"kaafi": true, "kitna": true, "par": true, "mein": true, "aur": true,
}

// greetings are matched against the whole normalized message, not as
// substrings, so "hi, what about hidden fees?" is not a greeting.
var greetings = map[string]bool{
	"hi": true, "hello": true, "hey": true, "helo": true, "hy": true,
	"good morning": true, "good afternoon": true, "good evening": true,
	"namaste": true, "namaskar": true, "pranam": true,
	"hello ji": true, "hi ji": true, "namaste ji": true,
	"kya hal hai": true, "kaise ho": true, "kaise hain": true,
	"नमस्ते": true, "नमस्कार": true, "प्रणाम": true, "हैलो": true, "हाय": true,
}

var hesitationKeywords = []string{
	"maybe", "not sure", "i don't know", "thinking about it",
	"let me think", "need to think", "not decided", "unsure",
	"comparing", "checking other", "looking at other",
	"expensive", "too much", "not convinced", "doubt",
	"later", "some other time", "will see", "let's see",
	"next week", "next month", "tomorrow", "another day",
	"in a few days", "not today", "not right now",
	"postpone", "hold on",
}

var cashbackKeywords = []string{
	"cashback", "cash back", "reward", "rewards", "jewel", "jewels",
	"point", "points",
}

var feesKeywords = []string{
	"fee", "fees", "charge", "charges", "cost", "price", "annual fee",
	"joining fee", "hidden",
}

var eligibilityKeywords = []string{
	"eligibility", "eligible", "qualify", "criteria", "income", "salary",
	"credit score", "cibil",
}

var documentKeywords = []string{
	"document", "documents", "kyc", "ekyc", "verification", "proof",
	"pan", "pancard", "aadhaar", "aadhar", "adhaar", "adhar",
}

// offTopicKeywords covers everything the agent must decline to discuss:
// politics and public figures, other banks and financial products, tech,
// entertainment, and generic trivia.
var offTopicKeywords = []string{
	// general topics
	"weather", "news", "politics", "sports", "recipe", "movie", "restaurant",
	"hotel", "train", "bus", "stock", "crypto", "bitcoin", "election",
	"prime minister", "president", "minister", "government", "parliament",
	"modi", "rahul", "kejriwal", "yogi", "gandhi",

	// trivia question forms; bare "who/what/..." questions with no card
	// vocabulary are handled by the fallback rule instead, so "who is
	// eligible" still reaches retrieval
	"what is the capital", "what is the meaning", "how to cook", "how to make",

	// other financial products
	"loan", "personal loan", "home loan", "car loan", "education loan",
	"insurance", "life insurance", "health insurance", "term insurance",
	"savings account", "current account", "fixed deposit", "forex",
	"mutual fund", "stock market", "trading", "debit card",

	// other banks and cards
	"other cards", "other credit cards", "best credit card",
	"hdfc", "icici", "axis", "sbi", "kotak", "citi", "american express",
	"amex", "yes bank", "indusind", "standard chartered",

	// technology
	"iphone", "android", "samsung", "laptop", "computer", "software",
	"download", "install", "virus", "hack", "password reset",

	// entertainment
	"game", "video game", "youtube", "facebook", "instagram", "twitter",
	"telegram", "match score", "cricket", "football", "ipl",
}

// cardRelatedKeywords decide whether an unmatched question is still about the
// card (goes to retrieval) or trivia (declined).
var cardRelatedKeywords = []string{
	"card", "credit", "cashback", "reward", "fee", "fees", "limit", "apply",
	"application", "eligibility", "document", "pan", "aadhaar", "kyc",
	"jupiter", "edge", "csb", "rupay", "upi", "emi", "jewel",
	"merchant", "shopping", "travel", "payment", "billing", "statement",
	"benefit", "benefits", "lounge", "interest",
}

var questionWords = map[string]bool{
	"who": true, "what": true, "where": true, "when": true, "why": true,
	"how": true, "which": true, "whose": true,
}

// merchants the card has named cashback partnerships with, checked during
// entity extraction.
var merchants = []string{
	"amazon", "flipkart", "myntra", "ajio", "zara", "nykaa", "croma",
	"reliance trends", "tata cliq", "reliance digital", "makemytrip",
	"easemytrip", "yatra", "cleartrip",
}
