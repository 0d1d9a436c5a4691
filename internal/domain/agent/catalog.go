package agent

import "fmt"

// budgetClause is appended to every analysis function; it renders only when a budget is set.
const budgetClause = "{{if .TokenBudget}} The analysis should be maximum {{.TokenBudget}} tokens.{{end}}"

const analysisFunction = "Your function is to analyze the provided excerpts of financial reports, " +
	"extracted tables and news summaries and deliver a focused, evidence-based assessment of %s. " +
	"Cite concrete figures from the excerpts, state the trend and its likely implication for the stock price, " +
	"and say explicitly when the excerpts do not contain enough information." + budgetClause

func analyst(name, role, focus, query string) Agent {
	return MustNew(name, role, fmt.Sprintf(analysisFunction, focus), query)
}

// Primary returns the core analysis panel in registration order.
func Primary() []Agent {
	return []Agent{
		analyst(
			"Profitability Analysis Agent",
			"You are an expert in evaluating company profitability through margins, returns and earnings power.",
			"gross, operating and net margins, return on equity and return on assets",
			"gross margin operating margin net income profitability return on equity return on assets",
		),
		analyst(
			"Leverage Analysis Agent",
			"You are an expert in capital structure and solvency analysis.",
			"debt levels, debt-to-equity, interest coverage and refinancing risk",
			"total debt long-term debt debt-to-equity interest expense interest coverage leverage",
		),
		analyst(
			"Liquidity Analysis Agent",
			"You are an expert in short-term financial health and cash management.",
			"current ratio, quick ratio, cash position and working capital",
			"cash and cash equivalents current assets current liabilities working capital liquidity",
		),
		analyst(
			"Operating Efficiency Agent",
			"You are an expert in operational efficiency and asset utilization.",
			"asset turnover, inventory turnover, operating expenses and cost control",
			"operating expenses inventory turnover asset turnover cost of revenue efficiency",
		),
		analyst(
			"Earnings Quality Agent",
			"You are an expert in assessing the sustainability and accounting quality of reported earnings.",
			"cash conversion, accruals, one-off items and the gap between GAAP and non-GAAP results",
			"operating cash flow free cash flow non-GAAP one-time items accruals earnings quality",
		),
		analyst(
			"Growth Analysis Agent",
			"You are an expert in revenue and earnings growth analysis.",
			"revenue growth, segment growth, volume trends and forward guidance",
			"revenue growth year-over-year deliveries segment growth guidance outlook",
		),
		analyst(
			"Valuation Analysis Agent",
			"You are an expert in equity valuation.",
			"earnings multiples, cash-flow based valuation and the valuation implied by the reported fundamentals",
			"earnings per share price-to-earnings valuation multiples free cash flow per share",
		),
		analyst(
			"Dividend Policy Agent",
			"You are an expert in shareholder returns and capital allocation.",
			"dividends, buybacks, payout ratio and capital allocation priorities",
			"dividends share repurchase buyback payout ratio capital allocation",
		),
		analyst(
			"Market Sentiment Agent",
			"You are an expert in reading market and media sentiment around a company.",
			"news flow, analyst and investor sentiment and recent market reactions",
			"market sentiment news analyst rating investor reaction stock price",
		),
		analyst(
			"Risk Factors Agent",
			"You are an expert in identifying and weighing business, financial and regulatory risks.",
			"the material risk factors, their likelihood and their potential financial impact",
			"risk factors uncertainty regulatory litigation supply chain competition headwinds",
		),
	}
}

// Extended returns the optional richer analysis panel in registration order.
func Extended() []Agent {
	return []Agent{
		analyst(
			"Industry Positioning Agent",
			"You are an expert in competitive strategy and industry structure.",
			"market share, competitive advantages and the company's position within its industry",
			"market share competitors competitive advantage industry position pricing power",
		),
		analyst(
			"ESG Analysis Agent",
			"You are an expert in environmental, social and governance assessment.",
			"environmental impact, social responsibility and governance practices",
			"environmental sustainability emissions social governance board ESG",
		),
		analyst(
			"Innovation Analysis Agent",
			"You are an expert in research, development and technological leadership.",
			"R&D investment, product pipeline and technological differentiation",
			"research and development R&D expenses new products technology innovation pipeline",
		),
		analyst(
			"Macroeconomic Context Agent",
			"You are an expert in how macroeconomic conditions affect company performance.",
			"exposure to interest rates, inflation, currency moves and economic cycles",
			"interest rates inflation foreign exchange macroeconomic demand environment tariffs",
		),
		analyst(
			"Diversification Analysis Agent",
			"You are an expert in revenue mix and concentration risk.",
			"segment and geographic diversification and customer concentration",
			"segment revenue geographic revenue mix customers concentration diversification",
		),
		analyst(
			"Management Effectiveness Agent",
			"You are an expert in evaluating management execution and strategy.",
			"execution against stated goals, strategic clarity and management commentary",
			"management strategy execution outlook commentary leadership targets",
		),
	}
}

// ChunkSummary summarizes one narrative chunk before it is embedded.
func ChunkSummary() Agent {
	return MustNew(
		"Financial Report Summary Agent",
		"You are an expert financial analysis agent specializing in extracting key insights from financial reports "+
			"to provide actionable summaries. Your role involves evaluating a company's financial performance, "+
			"growth trends, risks, and their implications on the stock price.",
		"Your function is to analyze the provided chunk of text from a financial report and deliver a concise and "+
			"contextually relevant one-paragraph summary. The summary should focus on the company's financial "+
			"performance, market trends, growth opportunities, risks, and their potential impact on the stock price. "+
			"Ensure the summary aligns with the overarching goal of supporting equity analysis, avoiding any "+
			"unrelated or superficial details."+
			"{{if .TokenBudget}} The summary should be maximum {{.TokenBudget}} tokens{{end}}",
		"",
	)
}

// ReportIntegration merges the panel's analyses into one equity research report.
func ReportIntegration() Agent {
	return MustNew(
		"Equity Report Integration Agent",
		"You are an expert equity research editor who turns a set of focused analyses and supporting tables "+
			"into a coherent, well-structured equity research report.",
		"Your function is to integrate the provided analyses and tables into report sections with a heading and "+
			"content each. Where a table supports a section, include it with a caption. Do not invent figures that "+
			"are not present in the input, and note any analyses marked as unavailable."+
			"{{if .TokenBudget}} The report should be maximum {{.TokenBudget}} tokens.{{end}}",
		"",
	)
}
