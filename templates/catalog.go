package templates

var catalog = []Template{
	{
		ID:              "high-value-transactions",
		Name:            "High Value Transaction Alert",
		Description:     "Flag transactions that exceed a specified threshold amount",
		Category:        CategoryFraud,
		NaturalLanguage: "Flag transactions where amount is greater than $1000",
		RuleCode:        "if transaction.amount > 1000 then flag_transaction",
		Variables: []Variable{
			{Name: "threshold", Label: "Amount Threshold", Type: KindNumber, DefaultValue: float64(1000)},
		},
	},
	{
		ID:              "new-country-transactions",
		Name:            "New Country Transaction",
		Description:     "Alert on transactions from countries not previously seen for this user",
		Category:        CategoryFraud,
		NaturalLanguage: "Flag transactions where user country is not in their previously seen countries",
		RuleCode:        "if user.country not in user.previous_countries then flag_transaction",
		Variables:       []Variable{},
	},
	{
		ID:              "rapid-transactions",
		Name:            "Rapid Successive Transactions",
		Description:     "Detect multiple transactions in a short timeframe",
		Category:        CategoryFraud,
		NaturalLanguage: "Flag if more than 3 transactions occur within 5 minutes",
		RuleCode:        "if transaction.count > 3 and transaction.timeframe < 5 then flag_transaction",
		Variables: []Variable{
			{Name: "count", Label: "Transaction Count", Type: KindNumber, DefaultValue: float64(3)},
			{Name: "minutes", Label: "Time Window (minutes)", Type: KindNumber, DefaultValue: float64(5)},
		},
	},
	{
		ID:              "high-risk-country",
		Name:            "High Risk Country",
		Description:     "Flag transactions from countries designated as high risk",
		Category:        CategoryCompliance,
		NaturalLanguage: "Flag transactions where user country is in the high risk country list",
		RuleCode:        `if user.country in ["Country1", "Country2", "Country3"] then flag_transaction`,
		Variables: []Variable{
			{Name: "countries", Label: "High Risk Countries", Type: KindArray, DefaultValue: []any{"Country1", "Country2", "Country3"}},
		},
	},
	{
		ID:              "revenue-threshold",
		Name:            "Revenue Threshold Alert",
		Description:     "Monitor when weekly revenue exceeds a specified threshold",
		Category:        CategoryMonitoring,
		NaturalLanguage: "Alert when weekly revenue exceeds $50,000",
		RuleCode:        "if weekly_revenue > 50000 then send_alert",
		Variables: []Variable{
			{Name: "threshold", Label: "Revenue Threshold", Type: KindNumber, DefaultValue: float64(50000)},
		},
	},
	{
		ID:              "unusual-activity",
		Name:            "Unusual Activity Pattern",
		Description:     "Detect activity patterns that deviate from user's normal behavior",
		Category:        CategorySecurity,
		NaturalLanguage: "Flag if user activity level is greater than 200% of their average activity",
		RuleCode:        "if user.activity_level > user.average_activity * 2 then flag_suspicious_activity",
		Variables: []Variable{
			{Name: "multiplier", Label: "Activity Multiplier", Type: KindNumber, DefaultValue: float64(2)},
		},
	},
	{
		ID:              "location-mismatch",
		Name:            "Location Mismatch",
		Description:     "Alert when user location doesn't match their registered address",
		Category:        CategorySecurity,
		NaturalLanguage: "Flag transactions where user location state is not equal to their registered state",
		RuleCode:        "if location.state != user.registered_state then flag_transaction",
		Variables:       []Variable{},
	},
	{
		ID:              "performance-degradation",
		Name:            "Performance Degradation",
		Description:     "Monitor for system performance issues",
		Category:        CategoryPerformance,
		NaturalLanguage: "Alert when response time is greater than 500ms for more than 5 minutes",
		RuleCode:        "if system.response_time > 500 and condition.duration > 5 then send_performance_alert",
		Variables: []Variable{
			{Name: "responseTime", Label: "Response Time (ms)", Type: KindNumber, DefaultValue: float64(500)},
			{Name: "duration", Label: "Duration (minutes)", Type: KindNumber, DefaultValue: float64(5)},
		},
	},
}
