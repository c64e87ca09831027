package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/walletd-io/walletd/internal/models"
)

const logPath = "/v1/log"

func (suite *HandlerTestSuite) TestCreateLogs() {
	body, err := json.Marshal(models.AddLogs{Logs: []string{
		"Get pass task (pass type pass.com.example.loyalty, serial number NX-8J23FM3) encountered error: Server response was malformed",
		"Register task completed",
	}})
	suite.Require().NoError(err)

	_, res, reqErr := suite.ServeRequest(http.MethodPost, logPath, logPath,
		suite.api.CreateLogs, bytes.NewBuffer(body), nil)
	suite.Require().NoError(reqErr)
	suite.Equal(http.StatusOK, res.Code)

	var logs []models.Log
	suite.Require().NoError(suite.api.db.Find(&logs).Error)
	suite.Require().Len(logs, 2)
	messages := []string{logs[0].Message, logs[1].Message}
	suite.Contains(messages, "Register task completed")
}

func (suite *HandlerTestSuite) TestCreateLogsEmptyBatch() {
	body, err := json.Marshal(models.AddLogs{})
	suite.Require().NoError(err)

	_, res, reqErr := suite.ServeRequest(http.MethodPost, logPath, logPath,
		suite.api.CreateLogs, bytes.NewBuffer(body), nil)
	suite.Require().NoError(reqErr)
	suite.Equal(http.StatusOK, res.Code)

	var count int64
	suite.api.db.Model(&models.Log{}).Count(&count)
	suite.Equal(int64(0), count)
}

func (suite *HandlerTestSuite) TestCreateLogsBadPayload() {
	_, res, err := suite.ServeRequest(http.MethodPost, logPath, logPath,
		suite.api.CreateLogs, bytes.NewBufferString(`{"logs": "not-a-list"}`), nil)
	suite.Require().NoError(err)
	suite.Equal(http.StatusBadRequest, res.Code)
}
