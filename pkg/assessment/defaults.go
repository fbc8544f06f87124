package assessment

import "maturity-navigator-api/pkg/models"

// 分析テキストにスコアがない場合の領域ごとの既定スコア
const (
	DefaultProductivityScore  = 2.5
	DefaultValueCreationScore = 1.8
	DefaultBusinessModelScore = 3.2
)

// 総合スコアの既定の重み
const (
	DefaultProductivityWeight  = 0.3
	DefaultValueCreationWeight = 0.3
	DefaultBusinessModelWeight = 0.4
)

// DefaultMinQuestions 強制完了に必要な最小回答数
const DefaultMinQuestions = 4

// DefaultSettings 組み込みのインタビュー設定を返す
func DefaultSettings() Settings {
	return Settings{
		Prompts:   defaultPrompts(),
		Questions: defaultQuestions(),
		Flow: Flow{
			UserInfoCount:             3,
			ProductivityCount:         3,
			ValueCreationCount:        3,
			BusinessModelCount:        3,
			MinQuestionsForCompletion: DefaultMinQuestions,
		},
		Framework: Framework{
			Bands: DefaultBands(),
			Weights: Weights{
				Productivity:  DefaultProductivityWeight,
				ValueCreation: DefaultValueCreationWeight,
				BusinessModel: DefaultBusinessModelWeight,
			},
			DefaultScores: DefaultScores{
				Productivity:  DefaultProductivityScore,
				ValueCreation: DefaultValueCreationScore,
				BusinessModel: DefaultBusinessModelScore,
			},
		},
		Models: Models{
			Conversation: models.ModelConfig{ModelID: "gpt-4o", Temperature: 0.7, MaxTokens: 500},
			Analysis:     models.ModelConfig{ModelID: "gpt-4o", Temperature: 0.3, MaxTokens: 1000},
			Speech:       SpeechModel{ModelID: "tts-1", Voice: "alloy"},
			Transcribe:   "whisper-1",
		},
	}
}

// DefaultBands 4段階の成熟度フレームワーク
func DefaultBands() []Band {
	return []Band{
		{Level: models.LevelExploring, Name: "Exploring", Max: 1.75,
			Description: "Basic awareness of AI potential with minimal implementation. Beginning to identify use cases and experiment with simple tools."},
		{Level: models.LevelExperimenting, Name: "Experimenting", Max: 2.75,
			Description: "Active pilots and limited use cases in place. Some successful implementations but lacking systematic approach."},
		{Level: models.LevelImplementing, Name: "Implementing", Max: 3.5,
			Description: "Systematic adoption across multiple areas with formal processes, training, and governance. Clear ROI measurement."},
		{Level: models.LevelTransforming, Name: "Transforming", Max: 4.0,
			Description: "AI as a core strategic driver fundamentally changing how business operates. Organization-wide capabilities with continuous innovation."},
	}
}

func defaultPrompts() Prompts {
	return Prompts{
		ConversationIntro: `You are an AI assistant conducting an assessment of organizational AI maturity.
Your goal is to have a natural, conversational 10-minute dialogue that helps determine the maturity level
across three key value dimensions: productivity enhancement, product/service innovation, and business model disruption.

Be warm, professional, and encouraging. Ask follow-up questions when responses are vague or brief.
Guide the conversation naturally through all assessment areas.
Keep your responses concise and engaging, suitable for business executives.`,

		UserInfoGathering: `You are beginning an AI maturity assessment. Start by gathering basic information
about the person and their organization. Ask about their role, industry, company size, and
responsibilities in a conversational manner. Listen actively and acknowledge their responses.
This information will help contextualize the assessment results later.`,

		ProductivityAssessment: `Focus on assessing the organization's use of AI for productivity enhancement.
Ask about current AI tool adoption, comfort levels with prompting, leadership support for AI,
implementation challenges, and ROI measurement. Listen for indicators of:
- Exploring (Level 1): Basic awareness but minimal use
- Experimenting (Level 2): Some tools in use with limited scope
- Implementing (Level 3): Systematic adoption with training and policies
- Transforming (Level 4): Advanced integration with clear ROI and innovation

Look for both personal and team-level adoption patterns.`,

		ValueCreationAssessment: `Focus on assessing how the organization uses AI to enhance products and services.
Ask about AI features in offerings, customer response, competitive positioning, and data capabilities.
Listen for indicators of:
- Exploring (Level 1): Considering but no implementation
- Experimenting (Level 2): Early pilots or limited features
- Implementing (Level 3): Multiple AI-enhanced offerings with customer validation
- Transforming (Level 4): AI as core differentiator driving significant value

Identify both current implementations and strategic vision.`,

		BusinessModelAssessment: `Focus on assessing if and how the organization is using AI to transform its business model.
Ask about strategic vision, new revenue streams, value chain disruption, and ecosystem engagement.
Listen for indicators of:
- Exploring (Level 1): Traditional model with awareness of potential disruption
- Experimenting (Level 2): Small-scale tests of new approaches
- Implementing (Level 3): Parallel business models with AI components
- Transforming (Level 4): Fundamentally AI-driven model or significant transformation

Pay attention to both current state and future planning.`,

		ClosingConversation: `The assessment is nearing completion. Wrap up the conversation professionally by:
1. Expressing gratitude for their time and insights
2. Briefly summarizing 1-2 key points you've learned about their AI journey
3. Setting expectations about the AI maturity report they'll receive
4. Ending on an encouraging note about their AI maturity journey`,

		AnalysisInstruction: `Analyze the conversation transcript to determine AI maturity levels across three dimensions:
1. Productivity Enhancement (personal and team efficiency)
2. Value Creation (products and services)
3. Business Model Innovation

For each area, identify:
- Current maturity level (1-4)
- Key strengths demonstrated
- Specific opportunities for growth
- Recommended next steps

Then calculate an overall maturity score as the weighted average.
Provide a comprehensive yet concise assessment with actionable recommendations.
Reference specific responses from the conversation to justify your analysis.`,

		AnalysisFormat: `Report each dimension in this exact layout, using a score between 1.0 and 4.0:

Productivity Score: <score>/4.0
Productivity Strengths:
- <strength>
Productivity Opportunities:
- <opportunity>

Value Creation Score: <score>/4.0
Value Creation Strengths:
- <strength>
Value Creation Opportunities:
- <opportunity>

Business Model Score: <score>/4.0
Business Model Strengths:
- <strength>
Business Model Opportunities:
- <opportunity>`,
	}
}

func defaultQuestions() QuestionBank {
	q := func(id, text string, area models.ValueArea) models.Question {
		return models.Question{ID: id, Text: text, ValueArea: area}
	}
	general := models.ValueAreaGeneral

	return QuestionBank{
		UserInfo: []models.Question{
			q("user-name-role", "Hi there! I'm excited to help you understand your AI readiness. First, could you tell me your name and role in your organization?", general),
			q("user-industry", "What industry does your organization operate in? For example, healthcare, finance, retail, manufacturing...", general),
			q("user-org-size", "Roughly how large is your organization? Would you say it's a small business, mid-sized company, or enterprise?", general),
			q("user-responsibility", "Are you primarily responsible for business decisions, technical implementations, or a mix of both?", general),
			q("user-email", "Where would you like me to send your personalized AI maturity report when we're done?", general),
		},
		Productivity: []models.Question{
			q("prod-personal-experience", "How would you describe your personal experience with AI tools so far? Have you tried tools like ChatGPT, GitHub Copilot, or AI-based productivity assistants?", models.ValueAreaProductivity),
			q("prod-workday-tasks", "When you think about your typical workday, which tasks do you think could benefit most from AI assistance?", models.ValueAreaProductivity),
			q("prod-team-adoption", "Has your team adopted any AI tools for improving productivity? If yes, how widespread is the usage?", models.ValueAreaProductivity),
			q("prod-challenges", "What's your biggest challenge when it comes to improving productivity in your role or team?", models.ValueAreaProductivity),
			q("prod-prompting", "How comfortable are you with prompting AI systems to get the outputs you need?", models.ValueAreaProductivity),
			q("prod-reaction", "When someone on your team suggests using a new AI tool, what's typically your first reaction?", models.ValueAreaProductivity),
		},
		ValueCreation: []models.Question{
			q("value-current-integration", "Has your organization integrated AI features into any existing products or services? Could you share an example?", models.ValueAreaValueCreation),
			q("value-customer-problems", "What customer problems do you think AI could help solve in your current offerings?", models.ValueAreaValueCreation),
			q("value-insights", "How do you currently gather insights about how AI might enhance your customer experience?", models.ValueAreaValueCreation),
			q("value-competition", "When thinking about your competitors, how would you rate their AI integration compared to yours?", models.ValueAreaValueCreation),
			q("value-barriers", "What's the biggest barrier to implementing AI in your products or services right now?", models.ValueAreaValueCreation),
			q("value-customer-reaction", "How do your customers typically react to technology-driven changes in your offerings?", models.ValueAreaValueCreation),
		},
		BusinessModel: []models.Question{
			q("biz-future-vision", "When you think about your industry five years from now, how do you imagine AI might change the fundamental business models?", models.ValueAreaBusinessModel),
			q("biz-revenue-streams", "Has your organization explored any entirely new revenue streams that would be enabled by AI?", models.ValueAreaBusinessModel),
			q("biz-leadership", "How often does your leadership team discuss AI as a strategic priority versus an operational tool?", models.ValueAreaBusinessModel),
			q("biz-value-chain", "Which parts of your value chain (like procurement, production, distribution) do you think are most ready for AI transformation?", models.ValueAreaBusinessModel),
			q("biz-prioritization", "If you had unlimited resources, which AI-driven business transformation would you prioritize first?", models.ValueAreaBusinessModel),
			q("biz-approach", "How does your organization typically approach emerging technologies - as an early adopter, fast follower, or wait-and-see?", models.ValueAreaBusinessModel),
		},
		Closing: []models.Question{
			q("closing-hope", "Based on our conversation, I'm curious - what's your biggest hope for how AI might benefit your organization?", general),
			q("closing-concern", "What's your biggest concern about adopting more AI in your business?", general),
			q("closing-report", "Is there anything specific you'd like to see in your AI maturity report that would make it most valuable to you?", general),
		},
	}
}
