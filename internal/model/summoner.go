package model

// Summoner is a player account resolved through the summoner endpoints.
type Summoner struct {
	PUUID         string
	SummonerID    string
	AccountID     string
	Name          string
	ProfileIconID int
	Level         int
}

// LeagueEntry is one row from the league listing endpoints; used only for
// seed discovery, so it carries just the identity fields.
type LeagueEntry struct {
	SummonerID   string
	SummonerName string
	PUUID        string
	Tier         string
	Rank         string
	LeaguePoints int
}
