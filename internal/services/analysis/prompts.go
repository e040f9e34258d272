package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bobmcallan/analyst/internal/models"
)

// System prompts for generators that accept a separate system message.
// The user prompts below are complete on their own.
const (
	AnalystSystemPrompt = "You are a senior equity research analyst. Use only the market data supplied in the prompt."
	WriterSystemPrompt  = "You are a financial writer producing institutional-grade markdown research reports."
)

const analystPersona = `You are a seasoned Wall Street analyst with 15+ years of experience in equity research.
You are known for meticulous, data-driven analysis. Base every statement on the market data
provided below, never on prior knowledge of the company.`

const analystInstructions = `Analyze %s using the market data below. Your analysis must include:

1. Latest Trading Information (highest priority)
   - Latest price with its session date
   - Percentage change and trading volume
   - Market status (open/closed)

2. 52-Week Performance
   - 52-week high and low with exact dates
   - Current position within the 52-week range
   - Percentage distance from the high and the low

3. Financial Deep Dive
   - Market capitalization, P/E ratio, EPS
   - Profit margins and revenue where reported
   - Dividend information (if applicable)

4. Technical Analysis
   - Recent price movements from the daily history
   - Volume analysis against the 20-day average
   - Moving averages and RSI where available

5. Market Context
   - Business summary
   - Analyst recommendations and price targets
   - Key risk factors

Rules:
- Start with the latest price and 52-week data
- Include the date for every price point
- Show percentage changes explicitly
- Say "not reported" for any metric missing from the data

Market data (JSON, data source: %s, retrieved %s):
%s`

const reportInstructions = `You are an expert financial writer who produces institutional-grade research reports.
Today's date is %s.

Transform the following financial analysis into a professional investment report:

%s

The report must:

1. Structure
   - Begin with an executive summary
   - Use clear section headers
   - Present key data in tables
   - Add trend indicators (📈 📉)

2. Content
   - Include dates for all data points
   - Use bullet points for key insights
   - Explain technical terms
   - Highlight potential risks

3. Sections
   - Executive Summary
   - Market Position Overview
   - Financial Metrics Analysis
   - Technical Analysis
   - Risk Assessment
   - Future Outlook

4. Formatting
   - Clean, readable markdown
   - Bold for key metrics

Maintain a professional tone, state the data sources, and close with a risk disclaimer.
Use today's date wherever the report needs a date.`

// buildAnalystPrompt embeds the snapshot as JSON so every figure the model
// sees comes from the fetch stage
func buildAnalystPrompt(snap *models.MarketSnapshot) (string, error) {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(analystPersona)
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, analystInstructions,
		snap.Symbol,
		snap.Source,
		snap.DataTimestamp.Format("2006-01-02 15:04 MST"),
		string(data),
	)
	return sb.String(), nil
}

func buildReportPrompt(summary *models.AnalysisSummary, date string) string {
	return fmt.Sprintf(reportInstructions, date, summary.Text)
}

// datePlaceholders are the stand-ins models leave when asked to date a report
var datePlaceholders = []string{"[Insert Date]", "[insert date]", "[TODAY'S DATE]", "[Current Date]"}

func replaceDatePlaceholders(text, date string) string {
	for _, p := range datePlaceholders {
		text = strings.ReplaceAll(text, p, date)
	}
	return text
}
