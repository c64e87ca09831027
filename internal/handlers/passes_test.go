package handlers

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/walletd-io/walletd/internal/models"
)

const serialNumbersPath = "/v1/devices/:deviceLibraryId/registrations/:passTypeId"

func serialNumbersURI(deviceLibraryID, passTypeID, updatedSince string) string {
	uri := fmt.Sprintf("/v1/devices/%s/registrations/%s", deviceLibraryID, passTypeID)
	if updatedSince != "" {
		uri += "?passesUpdatedSince=" + url.QueryEscape(updatedSince)
	}
	return uri
}

func (suite *HandlerTestSuite) TestGetSerialNumbersUnknownDevice() {
	_, res, err := suite.ServeRequest(http.MethodGet, serialNumbersPath,
		serialNumbersURI("never-registered", testPassTypeID, ""),
		suite.api.GetSerialNumbers, nil, nil)
	suite.Require().NoError(err)
	suite.Equal(http.StatusNotFound, res.Code)
}

func (suite *HandlerTestSuite) TestGetSerialNumbersNoPasses() {
	pass := suite.createPass(testSerialNumber, time.Now())
	suite.createRegistration(pass, testDeviceLibraryID, strings.Repeat("ab", 32))

	_, res, err := suite.ServeRequest(http.MethodGet, serialNumbersPath,
		serialNumbersURI(testDeviceLibraryID, "pass.com.other.type", ""),
		suite.api.GetSerialNumbers, nil, nil)
	suite.Require().NoError(err)
	suite.Equal(http.StatusNotFound, res.Code)
}

func (suite *HandlerTestSuite) TestGetSerialNumbersMostRecentBatch() {
	t1 := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	t3 := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	older := suite.createPass("SN-OLD", t1)
	second := suite.createPass("SN-NEW-1", t3)
	third := suite.createPass("SN-NEW-2", t3)

	for _, pass := range []*models.Pass{older, second, third} {
		suite.createRegistration(pass, testDeviceLibraryID, strings.Repeat("ab", 32))
	}

	_, res, err := suite.ServeRequest(http.MethodGet, serialNumbersPath,
		serialNumbersURI(testDeviceLibraryID, testPassTypeID, ""),
		suite.api.GetSerialNumbers, nil, nil)
	suite.Require().NoError(err)
	suite.Require().Equal(http.StatusOK, res.Code)

	var body models.SerialNumbers
	suite.Require().NoError(json.Unmarshal(res.Body.Bytes(), &body))
	suite.Equal("2024-01-15 12:00:00", body.LastUpdated)
	suite.ElementsMatch([]string{"SN-NEW-1", "SN-NEW-2"}, body.SerialNumbers)
}

func (suite *HandlerTestSuite) TestGetSerialNumbersUpdatedSince() {
	t1 := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 1, 15, 11, 0, 0, 0, time.UTC)
	older := suite.createPass("SN-OLD", t1)
	newer := suite.createPass("SN-NEW", t2)
	suite.createRegistration(older, testDeviceLibraryID, strings.Repeat("ab", 32))
	suite.createRegistration(newer, testDeviceLibraryID, strings.Repeat("ab", 32))

	_, res, err := suite.ServeRequest(http.MethodGet, serialNumbersPath,
		serialNumbersURI(testDeviceLibraryID, testPassTypeID, "2024-01-15 10:00:00"),
		suite.api.GetSerialNumbers, nil, nil)
	suite.Require().NoError(err)
	suite.Require().Equal(http.StatusOK, res.Code)

	var body models.SerialNumbers
	suite.Require().NoError(json.Unmarshal(res.Body.Bytes(), &body))
	suite.Equal([]string{"SN-NEW"}, body.SerialNumbers)
	suite.Equal("2024-01-15 11:00:00", body.LastUpdated)
}

func (suite *HandlerTestSuite) TestGetSerialNumbersNothingChanged() {
	pass := suite.createPass(testSerialNumber, time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC))
	suite.createRegistration(pass, testDeviceLibraryID, strings.Repeat("ab", 32))

	_, res, err := suite.ServeRequest(http.MethodGet, serialNumbersPath,
		serialNumbersURI(testDeviceLibraryID, testPassTypeID, "2030-01-01 00:00:00"),
		suite.api.GetSerialNumbers, nil, nil)
	suite.Require().NoError(err)
	suite.Equal(http.StatusNoContent, res.Code)
}

func (suite *HandlerTestSuite) TestGetSerialNumbersBadTimestamp() {
	pass := suite.createPass(testSerialNumber, time.Now())
	suite.createRegistration(pass, testDeviceLibraryID, strings.Repeat("ab", 32))

	_, res, err := suite.ServeRequest(http.MethodGet, serialNumbersPath,
		serialNumbersURI(testDeviceLibraryID, testPassTypeID, "yesterday"),
		suite.api.GetSerialNumbers, nil, nil)
	suite.Require().NoError(err)
	suite.Equal(http.StatusBadRequest, res.Code)
}

const latestPassPath = "/v1/passes/:passTypeId/:serialNumber"

func latestPassURI(passTypeID, serialNumber string) string {
	return fmt.Sprintf("/v1/passes/%s/%s", passTypeID, serialNumber)
}

func (suite *HandlerTestSuite) storeArchive(pass *models.Pass, contents []byte) {
	path, err := suite.api.archives.Save(pass.SerialNumber, contents)
	suite.Require().NoError(err)
	pass.ArchivePath = path
	suite.Require().NoError(suite.api.db.Save(pass).Error)
}

func (suite *HandlerTestSuite) TestGetLatestPass() {
	utime := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	pass := suite.createPass(testSerialNumber, utime)
	suite.storeArchive(pass, []byte("archive-bytes"))

	_, res, err := suite.ServeRequest(http.MethodGet, latestPassPath,
		latestPassURI(testPassTypeID, testSerialNumber),
		suite.api.GetLatestPass, nil,
		map[string]string{"Authorization": "ApplePass " + testAuthToken})
	suite.Require().NoError(err)
	suite.Require().Equal(http.StatusOK, res.Code)
	suite.Equal("application/vnd.apple.pkpass", res.Header().Get("Content-Type"))
	suite.Equal(`attachment; filename=pass.pkpass`, res.Header().Get("Content-Disposition"))
	suite.Equal(utime.Format(http.TimeFormat), res.Header().Get("Last-Modified"))
	suite.Equal("archive-bytes", res.Body.String())
}

func (suite *HandlerTestSuite) TestGetLatestPassNotModified() {
	utime := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	pass := suite.createPass(testSerialNumber, utime)
	suite.storeArchive(pass, []byte("archive-bytes"))
	headers := map[string]string{"Authorization": "ApplePass " + testAuthToken}

	headers["If-Modified-Since"] = utime.Format(http.TimeFormat)
	_, res, err := suite.ServeRequest(http.MethodGet, latestPassPath,
		latestPassURI(testPassTypeID, testSerialNumber), suite.api.GetLatestPass, nil, headers)
	suite.Require().NoError(err)
	suite.Equal(http.StatusNotModified, res.Code)

	headers["If-Modified-Since"] = utime.Add(-time.Hour).Format(http.TimeFormat)
	_, res, err = suite.ServeRequest(http.MethodGet, latestPassPath,
		latestPassURI(testPassTypeID, testSerialNumber), suite.api.GetLatestPass, nil, headers)
	suite.Require().NoError(err)
	suite.Equal(http.StatusOK, res.Code)

	// garbage conditional headers are ignored, not rejected
	headers["If-Modified-Since"] = "not a date"
	_, res, err = suite.ServeRequest(http.MethodGet, latestPassPath,
		latestPassURI(testPassTypeID, testSerialNumber), suite.api.GetLatestPass, nil, headers)
	suite.Require().NoError(err)
	suite.Equal(http.StatusOK, res.Code)
}

func (suite *HandlerTestSuite) TestGetLatestPassAuth() {
	pass := suite.createPass(testSerialNumber, time.Now())
	suite.storeArchive(pass, []byte("archive-bytes"))

	_, res, err := suite.ServeRequest(http.MethodGet, latestPassPath,
		latestPassURI(testPassTypeID, testSerialNumber), suite.api.GetLatestPass, nil,
		map[string]string{"Authorization": "ApplePass wrongtoken"})
	suite.Require().NoError(err)
	suite.Equal(http.StatusUnauthorized, res.Code)

	_, res, err = suite.ServeRequest(http.MethodGet, latestPassPath,
		latestPassURI(testPassTypeID, "NO-SUCH-SERIAL"), suite.api.GetLatestPass, nil, nil)
	suite.Require().NoError(err)
	suite.Equal(http.StatusNotFound, res.Code)
}

const upsertPassPath = "/api/passes"

func (suite *HandlerTestSuite) upsertBody(definition string) *bytes.Buffer {
	body, err := json.Marshal(models.AddPass{
		PassTypeID:          testPassTypeID,
		SerialNumber:        testSerialNumber,
		AuthenticationToken: testAuthToken,
		OrganizationName:    "Example Corp",
		TeamID:              "A93FJ38DL2",
		Description:         "Loyalty card",
		Definition:          json.RawMessage(definition),
	})
	suite.Require().NoError(err)
	return bytes.NewBuffer(body)
}

const testDefinition = `{
	"style": "storeCard",
	"primaryFields": [{"key": "balance", "label": "Balance", "value": "120", "numberStyle": "PKNumberStyleDecimal"}],
	"barcode": {"message": "NX-8J23FM3", "format": "PKBarcodeFormatQR"}
}`

func (suite *HandlerTestSuite) TestUpsertPass() {
	_, res, err := suite.ServeRequest(http.MethodPost, upsertPassPath, upsertPassPath,
		suite.api.UpsertPass, suite.upsertBody(testDefinition), nil)
	suite.Require().NoError(err)
	suite.Require().Equal(http.StatusCreated, res.Code)

	var pass models.Pass
	suite.Require().NoError(suite.api.db.First(&pass,
		"pass_type_id = ? AND serial_number = ?", testPassTypeID, testSerialNumber).Error)
	suite.NotEmpty(pass.ArchivePath)
	suite.False(pass.Utime.IsZero())

	archive, err := suite.api.archives.Read(pass.ArchivePath)
	suite.Require().NoError(err)
	reader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	suite.Require().NoError(err)
	names := make([]string, 0, len(reader.File))
	for _, f := range reader.File {
		names = append(names, f.Name)
	}
	suite.ElementsMatch([]string{"signature", "manifest.json", "pass.json"}, names)
}

func (suite *HandlerTestSuite) TestUpsertPassBumpsUtime() {
	_, res, err := suite.ServeRequest(http.MethodPost, upsertPassPath, upsertPassPath,
		suite.api.UpsertPass, suite.upsertBody(testDefinition), nil)
	suite.Require().NoError(err)
	suite.Require().Equal(http.StatusCreated, res.Code)

	var first models.Pass
	suite.Require().NoError(suite.api.db.First(&first,
		"pass_type_id = ? AND serial_number = ?", testPassTypeID, testSerialNumber).Error)

	_, res, err = suite.ServeRequest(http.MethodPost, upsertPassPath, upsertPassPath,
		suite.api.UpsertPass, suite.upsertBody(testDefinition), nil)
	suite.Require().NoError(err)
	suite.Equal(http.StatusOK, res.Code, "replacing an existing pass is an update")

	var count int64
	suite.api.db.Model(&models.Pass{}).Count(&count)
	suite.Equal(int64(1), count)

	var second models.Pass
	suite.Require().NoError(suite.api.db.First(&second,
		"pass_type_id = ? AND serial_number = ?", testPassTypeID, testSerialNumber).Error)
	suite.Equal(first.ID, second.ID)
	suite.False(second.Utime.Before(first.Utime))
}

func (suite *HandlerTestSuite) TestUpsertPassValidation() {
	body, err := json.Marshal(models.AddPass{SerialNumber: testSerialNumber})
	suite.Require().NoError(err)
	_, res, reqErr := suite.ServeRequest(http.MethodPost, upsertPassPath, upsertPassPath,
		suite.api.UpsertPass, bytes.NewBuffer(body), nil)
	suite.Require().NoError(reqErr)
	suite.Equal(http.StatusBadRequest, res.Code)

	_, res, reqErr = suite.ServeRequest(http.MethodPost, upsertPassPath, upsertPassPath,
		suite.api.UpsertPass, suite.upsertBody(`{"style": "hologram"}`), nil)
	suite.Require().NoError(reqErr)
	suite.Equal(http.StatusBadRequest, res.Code, "unknown styles are rejected")
}

const passRecordPath = "/api/passes/:passTypeId/:serialNumber"

func (suite *HandlerTestSuite) TestGetPassRecord() {
	suite.createPass(testSerialNumber, time.Now())

	_, res, err := suite.ServeRequest(http.MethodGet, passRecordPath,
		fmt.Sprintf("/api/passes/%s/%s", testPassTypeID, testSerialNumber),
		suite.api.GetPassRecord, nil, nil)
	suite.Require().NoError(err)
	suite.Require().Equal(http.StatusOK, res.Code)

	var pass models.Pass
	suite.Require().NoError(json.Unmarshal(res.Body.Bytes(), &pass))
	suite.Equal(testSerialNumber, pass.SerialNumber)

	_, res, err = suite.ServeRequest(http.MethodGet, passRecordPath,
		fmt.Sprintf("/api/passes/%s/%s", testPassTypeID, "NO-SUCH-SERIAL"),
		suite.api.GetPassRecord, nil, nil)
	suite.Require().NoError(err)
	suite.Equal(http.StatusNotFound, res.Code)
}
