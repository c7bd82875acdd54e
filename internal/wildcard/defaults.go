package wildcard

// DefaultLists seeds an empty wildcard directory.
var DefaultLists = map[string][]string{
	"artists": {
		"by Zdislaw Beksinski", "by Vincent Van Gogh", "by Michelangelo", "by Leonardo da Vinci",
		"by Pablo Picasso", "by Claude Monet", "by Salvador Dali", "by Andy Warhol", "by Banksy",
		"by Yayoi Kusama", "by Frida Kahlo", "by Gustav Klimt", "by Edvard Munch", "by Jackson Pollock",
		"by Georgia O'Keeffe", "by Jean-Michel Basquiat", "by Keith Haring", "by David Hockney",
		"by Katsushika Hokusai", "by Takashi Murakami",
	},
	"styles": {
		"anime style", "surrealist style", "expressionist style", "impressionist style", "cubist style",
		"art deco style", "art nouveau style", "baroque style", "minimalist style", "maximalist style",
		"gothic style", "romantic style", "realistic style", "abstract style", "pop art style",
		"street art style", "digital art style", "watercolor style", "oil painting style", "pencil sketch style",
	},
	"moods": {
		"cheerful", "melancholic", "mysterious", "energetic", "peaceful", "dramatic", "whimsical", "tense",
		"romantic", "nostalgic", "ethereal", "dark", "bright", "serene", "chaotic", "dreamy", "aggressive",
		"tranquil", "euphoric", "contemplative",
	},
	"lighting": {
		"soft lighting", "dramatic lighting", "rim lighting", "backlit", "golden hour", "blue hour",
		"neon lights", "candlelight", "moonlight", "sunlight", "studio lighting", "natural lighting",
		"harsh shadows", "diffused light", "volumetric lighting", "bioluminescent", "glowing", "radiant",
		"dim lighting", "bright lighting",
	},
	"colors": {
		"vibrant colors", "muted colors", "pastel colors", "neon colors", "monochrome", "sepia tones",
		"warm colors", "cool colors", "complementary colors", "analogous colors", "triadic colors",
		"earth tones", "jewel tones", "metallic colors", "rainbow colors", "gradient colors", "duo-tone",
		"psychedelic colors", "natural colors", "artificial colors",
	},
	"quality": {
		"masterpiece", "high quality", "ultra detailed", "professional", "award winning", "stunning",
		"beautiful", "intricate", "elaborate", "refined", "polished", "crisp", "sharp", "clean", "pristine",
		"flawless", "perfect", "exceptional", "outstanding", "remarkable",
	},
}
