package riot

// Wire shapes for the remote API. Only the fields the engine consumes are
// declared; unknown fields are ignored by encoding/json.

type matchDTO struct {
	Metadata matchMetadataDTO `json:"metadata"`
	Info     matchInfoDTO     `json:"info"`
}

type matchMetadataDTO struct {
	MatchID      string   `json:"matchId"`
	Participants []string `json:"participants"`
}

type matchInfoDTO struct {
	GameID             int64            `json:"gameId"`
	PlatformID         string           `json:"platformId"`
	QueueID            int              `json:"queueId"`
	GameCreation       int64            `json:"gameCreation"`
	GameStartTimestamp int64            `json:"gameStartTimestamp"`
	GameEndTimestamp   int64            `json:"gameEndTimestamp"`
	GameDuration       int64            `json:"gameDuration"`
	GameVersion        string           `json:"gameVersion"`
	GameMode           string           `json:"gameMode"`
	GameType           string           `json:"gameType"`
	Teams              []teamDTO        `json:"teams"`
	Participants       []participantDTO `json:"participants"`
}

type teamDTO struct {
	TeamID     int  `json:"teamId"`
	Win        bool `json:"win"`
	Objectives struct {
		Baron      objectiveDTO `json:"baron"`
		Dragon     objectiveDTO `json:"dragon"`
		Tower      objectiveDTO `json:"tower"`
		Inhibitor  objectiveDTO `json:"inhibitor"`
		RiftHerald objectiveDTO `json:"riftHerald"`
		Champion   objectiveDTO `json:"champion"`
	} `json:"objectives"`
}

type objectiveDTO struct {
	First bool `json:"first"`
	Kills int  `json:"kills"`
}

type participantDTO struct {
	PUUID                       string `json:"puuid"`
	SummonerID                  string `json:"summonerId"`
	SummonerName                string `json:"summonerName"`
	TeamID                      int    `json:"teamId"`
	ChampionID                  int    `json:"championId"`
	ChampionName                string `json:"championName"`
	TeamPosition                string `json:"teamPosition"`
	Lane                        string `json:"lane"`
	Kills                       int    `json:"kills"`
	Deaths                      int    `json:"deaths"`
	Assists                     int    `json:"assists"`
	GoldEarned                  int    `json:"goldEarned"`
	TotalDamageDealtToChampions int    `json:"totalDamageDealtToChampions"`
	TotalDamageTaken            int    `json:"totalDamageTaken"`
	VisionScore                 int    `json:"visionScore"`
	TotalMinionsKilled          int    `json:"totalMinionsKilled"`
	NeutralMinionsKilled        int    `json:"neutralMinionsKilled"`
	Item0                       int    `json:"item0"`
	Item1                       int    `json:"item1"`
	Item2                       int    `json:"item2"`
	Item3                       int    `json:"item3"`
	Item4                       int    `json:"item4"`
	Item5                       int    `json:"item5"`
	Item6                       int    `json:"item6"`
	Summoner1ID                 int    `json:"summoner1Id"`
	Summoner2ID                 int    `json:"summoner2Id"`
	Win                         bool   `json:"win"`
}

type summonerDTO struct {
	ID            string `json:"id"`
	AccountID     string `json:"accountId"`
	PUUID         string `json:"puuid"`
	Name          string `json:"name"`
	ProfileIconID int    `json:"profileIconId"`
	SummonerLevel int    `json:"summonerLevel"`
}

type leagueListDTO struct {
	Tier    string           `json:"tier"`
	Entries []leagueEntryDTO `json:"entries"`
}

type leagueEntryDTO struct {
	SummonerID   string `json:"summonerId"`
	SummonerName string `json:"summonerName"`
	PUUID        string `json:"puuid"`
	Tier         string `json:"tier"`
	Rank         string `json:"rank"`
	LeaguePoints int    `json:"leaguePoints"`
}
